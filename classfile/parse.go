package classfile

import (
	"fmt"
	"io"
	"os"
)

func ParseFile(path string) (*ClassFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open class file: %w", err)
	}
	return Parse(data)
}

func ParseReader(rd io.Reader) (*ClassFile, error) {
	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("failed to read class file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*ClassFile, error) {
	r := NewReader(data)

	magic := r.U32()
	if r.Err() != nil {
		return nil, fmt.Errorf("failed to read magic: %w", r.Err())
	}
	if magic != Magic {
		return nil, fmt.Errorf("invalid magic number: 0x%X (expected 0xCAFEBABE)", magic)
	}

	cf := &ClassFile{
		MinorVersion: r.U16(),
		MajorVersion: r.U16(),
	}
	if r.Err() != nil {
		return nil, fmt.Errorf("failed to read version: %w", r.Err())
	}

	constantPoolCount := int(r.U16())
	if r.Err() != nil {
		return nil, fmt.Errorf("failed to read constant pool count: %w", r.Err())
	}

	cf.ConstantPool = make(ConstantPool, 1, constantPoolCount+1)
	for len(cf.ConstantPool) < constantPoolCount {
		entry, err := readConstant(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read constant pool entry %d: %w", len(cf.ConstantPool), err)
		}
		cf.ConstantPool = append(cf.ConstantPool, entry)
		if entry.Tag.Wide() {
			cf.ConstantPool = append(cf.ConstantPool, Constant{})
		}
	}

	cf.AccessFlags = AccessFlags(r.U16())
	cf.ThisClass = r.U16()
	cf.SuperClass = r.U16()

	interfacesCount := r.U16()
	if r.Err() != nil {
		return nil, fmt.Errorf("failed to read class info: %w", r.Err())
	}

	cf.Interfaces = make([]uint16, interfacesCount)
	for i := range cf.Interfaces {
		cf.Interfaces[i] = r.U16()
	}
	if r.Err() != nil {
		return nil, fmt.Errorf("failed to read interfaces: %w", r.Err())
	}

	fieldsCount := r.U16()
	if r.Err() != nil {
		return nil, fmt.Errorf("failed to read fields count: %w", r.Err())
	}

	cf.Fields = make([]FieldInfo, fieldsCount)
	for i := range cf.Fields {
		field, err := readFieldInfo(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read field %d: %w", i, err)
		}
		cf.Fields[i] = field
	}

	methodsCount := r.U16()
	if r.Err() != nil {
		return nil, fmt.Errorf("failed to read methods count: %w", r.Err())
	}

	cf.Methods = make([]MethodInfo, methodsCount)
	for i := range cf.Methods {
		method, err := readMethodInfo(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read method %d: %w", i, err)
		}
		cf.Methods[i] = method
	}

	attrs, err := readAttributes(r, cf.ConstantPool)
	if err != nil {
		return nil, fmt.Errorf("failed to read class attributes: %w", err)
	}
	cf.Attributes = attrs

	return cf, nil
}

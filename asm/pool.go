package asm

import (
	"fmt"
	"slices"

	"github.com/dhamidi/krak/classfile"
)

type refKind int

const (
	refData refKind = iota
	refRaw
	refSymbolic
)

// Ref is a reference to a constant pool entry or a bootstrap method. It is
// either raw (an explicit index), symbolic (a name bound by a definition)
// or direct data that is interned into a free slot.
type Ref struct {
	Tok  Token
	IsBS bool

	kind   refKind
	index  int
	symbol string

	// Tag is zero for bootstrap method entries.
	Tag  classfile.ConstantTag
	Refs []*Ref
	// Data holds Utf8 bytes. Bits holds numeric values and the method
	// handle kind.
	Data []byte
	Bits uint64

	resolved bool
	slot     int
}

func rawRef(tok Token, index int, isBS bool) *Ref {
	return &Ref{Tok: tok, IsBS: isBS, kind: refRaw, index: index}
}

func symRef(tok Token, symbol string, isBS bool) *Ref {
	return &Ref{Tok: tok, IsBS: isBS, kind: refSymbolic, symbol: symbol}
}

func (r *Ref) IsRaw() bool      { return r.kind == refRaw }
func (r *Ref) IsSymbolic() bool { return r.kind == refSymbolic }

func (r *Ref) typeName() string {
	if r.IsBS {
		return "Bootstrap"
	}
	return r.Tag.String()
}

func utf(tok Token, b []byte) *Ref {
	return &Ref{Tok: tok, Tag: classfile.ConstantUtf8, Data: b}
}

func utfString(tok Token, s string) *Ref {
	return utf(tok, []byte(s))
}

// single builds a Class, String or MethodType entry around a Utf8.
func single(tag classfile.ConstantTag, tok Token, b []byte) *Ref {
	return &Ref{Tok: tok, Tag: tag, Refs: []*Ref{utf(tok, b)}}
}

func nat(name, desc *Ref) *Ref {
	return &Ref{Tok: name.Tok, Tag: classfile.ConstantNameAndType, Refs: []*Ref{name, desc}}
}

func primitive(tag classfile.ConstantTag, tok Token, bits uint64) *Ref {
	return &Ref{Tok: tok, Tag: tag, Bits: bits}
}

// dataKey identifies the interned contents of a data reference. Child
// references are folded into a chain of listKeys and referred to by id.
type dataKey struct {
	tag  classfile.ConstantTag
	bs   bool
	raw  bool
	data string
	bits uint64
	refs int
}

type listKey struct {
	head, tail int
}

type subPool struct {
	isBS bool

	symDefs  map[string]symDef
	symRoots map[string]*Ref

	slots     map[int]*Ref
	slotOrder []int
	slotToks  map[int]Token

	dataToSlot map[int]int
	nextNarrow int
	nextWide   int

	dirty []int
}

type symDef struct {
	tok Token
	rhs *Ref
}

func newSubPool(isBS bool) *subPool {
	s := &subPool{
		isBS:       isBS,
		symDefs:    map[string]symDef{},
		symRoots:   map[string]*Ref{},
		slots:      map[int]*Ref{},
		slotToks:   map[int]Token{},
		dataToSlot: map[int]int{},
	}
	if !isBS {
		s.setSlot(0, nil)
	}
	return s
}

func (s *subPool) setSlot(i int, r *Ref) {
	if _, ok := s.slots[i]; !ok {
		s.slotOrder = append(s.slotOrder, i)
	}
	s.slots[i] = r
}

func (s *subPool) has(i int) bool {
	_, ok := s.slots[i]
	return ok
}

// addDef binds lhs, a raw or symbolic reference, to rhs.
func (s *subPool) addDef(lhs, rhs *Ref) {
	if lhs.IsSymbolic() {
		if prev, ok := s.symDefs[lhs.symbol]; ok {
			raise("Duplicate symbolic reference definition", lhs.Tok, noteAt("Previously defined here:", prev.tok))
		}
		s.symDefs[lhs.symbol] = symDef{tok: lhs.Tok, rhs: rhs}
		return
	}

	if lhs.index == 0 && !s.isBS {
		raise("Constant pool index must be nonzero", lhs.Tok)
	}
	claim := func(i int, r *Ref) {
		if s.has(i) {
			raise("Conflicting raw reference definition", lhs.Tok, noteAt("Conflicts with previous definition:", s.slotToks[i]))
		}
		s.setSlot(i, r)
		s.slotToks[i] = lhs.Tok
	}
	claim(lhs.index, rhs)
	s.dirty = append(s.dirty, lhs.index)
	if rhs.Tag.Wide() {
		claim(lhs.index+1, nil)
	}
}

func (s *subPool) freeSlot(wide bool) (int, bool) {
	if wide {
		for s.nextWide < 0xFFFE {
			i := s.nextWide
			s.nextWide++
			if !s.has(i) && !s.has(i+1) {
				return i, true
			}
		}
		return 0, false
	}
	for s.nextNarrow < 0xFFFF {
		i := s.nextNarrow
		s.nextNarrow++
		if !s.has(i) {
			return i, true
		}
	}
	return 0, false
}

// root follows symbolic definitions until it reaches a raw or data
// reference.
func (s *subPool) root(r *Ref) *Ref {
	if root, ok := s.symRoots[r.symbol]; ok {
		return root
	}

	var stack []Token
	visited := map[string]bool{}
	var order []string
	for r.IsSymbolic() {
		sym := r.symbol
		if visited[sym] {
			var notes []Note
			for i := len(stack) - 1; i >= 0; i-- {
				notes = append(notes, noteAt("Included from here:", stack[i]))
			}
			raise("Circular symbolic reference", r.Tok, notes...)
		}
		stack = append(stack, r.Tok)
		visited[sym] = true
		order = append(order, sym)

		def, ok := s.symDefs[sym]
		if !ok {
			raise("Undefined symbolic reference", r.Tok)
		}
		r = def.rhs
	}

	for _, sym := range order {
		s.symRoots[sym] = r
	}
	return r
}

func (s *subPool) allocate(r *Ref, key int) int {
	if slot, ok := s.dataToSlot[key]; ok {
		return slot
	}
	wide := r.Tag.Wide()
	slot, ok := s.freeSlot(wide)
	if !ok {
		if r.IsBS {
			raise("Exhausted bootstrap method space.", r.Tok)
		}
		raise("Exhausted constant pool space.", r.Tok)
	}
	s.dataToSlot[key] = slot
	s.setSlot(slot, r)
	s.dirty = append(s.dirty, slot)
	if wide {
		s.setSlot(slot+1, nil)
	}
	return slot
}

// resolveDirty resolves the children of every slot defined since the last
// call. It reports whether there was anything to do.
func (s *subPool) resolveDirty(p *Pool) bool {
	if len(s.dirty) == 0 {
		return false
	}
	for len(s.dirty) > 0 {
		i := s.dirty[len(s.dirty)-1]
		s.dirty = s.dirty[:len(s.dirty)-1]
		for _, child := range s.slots[i].Refs {
			p.resolve(child)
		}
	}
	return true
}

func (s *subPool) writeConst(w *Writer, r *Ref, p *Pool) {
	w.U8(uint8(r.Tag))
	switch r.Tag {
	case classfile.ConstantUtf8:
		w.U16(uint16(len(r.Data)))
		w.Write(r.Data)
	case classfile.ConstantInteger, classfile.ConstantFloat:
		w.U32(uint32(r.Bits))
	case classfile.ConstantLong, classfile.ConstantDouble:
		w.U32(uint32(r.Bits >> 32))
		w.U32(uint32(r.Bits))
	case classfile.ConstantMethodHandle:
		w.U8(uint8(r.Bits))
		w.U16(uint16(p.resolve(r.Refs[0])))
	default:
		for _, child := range r.Refs {
			w.U16(uint16(p.resolve(child)))
		}
	}
}

func (s *subPool) writeBootstrap(w *Writer, r *Ref, p *Pool) {
	w.U16(uint16(p.resolve(r.Refs[0])))
	w.U16(uint16(len(r.Refs) - 1))
	for _, child := range r.Refs[1:] {
		w.U16(uint16(p.resolve(child)))
	}
}

func (s *subPool) write(p *Pool) *Writer {
	size := 0
	if len(s.slots) > 0 {
		size = slices.Max(s.slotOrder) + 1
	}

	// Gaps are filled with an empty Utf8, or a copy of the first bootstrap
	// method.
	filler := []byte{1, 0, 0}
	if s.isBS && len(s.slots) > 0 {
		fw := NewWriter()
		s.writeBootstrap(fw, s.slots[s.slotOrder[0]], p)
		filler = fw.Bytes()
	}

	w := NewWriter()
	w.U16(uint16(size))
	for i := 0; i < size; i++ {
		r, ok := s.slots[i]
		switch {
		case !ok:
			w.Write(filler)
		case r == nil:
		case s.isBS:
			s.writeBootstrap(w, r, p)
			if int64(w.Len()) > 0xFFFFFFFF {
				raise(fmt.Sprintf("Maximum BootstrapMethods length is %d bytes.", uint32(0xFFFFFFFF)), r.Tok)
			}
		default:
			s.writeConst(w, r, p)
		}
	}
	return w
}

// Pool holds both the constant pool and the bootstrap method table of a
// class being assembled.
type Pool struct {
	cp *subPool
	bs *subPool

	keys  map[dataKey]int
	lists map[listKey]int
}

func NewPool() *Pool {
	return &Pool{
		cp:    newSubPool(false),
		bs:    newSubPool(true),
		keys:  map[dataKey]int{},
		lists: map[listKey]int{},
	}
}

func (p *Pool) sub(r *Ref) *subPool {
	if r.IsBS {
		return p.bs
	}
	return p.cp
}

func (p *Pool) intern(k dataKey) int {
	id, ok := p.keys[k]
	if !ok {
		id = len(p.keys) + 1
		p.keys[k] = id
	}
	return id
}

func (p *Pool) internList(k listKey) int {
	id, ok := p.lists[k]
	if !ok {
		id = len(p.lists) + 1
		p.lists[k] = id
	}
	return id
}

// contentKey returns an id that is equal for two references exactly when
// they denote the same entry.
func (p *Pool) contentKey(r *Ref, defStack []*Ref) int {
	switch r.kind {
	case refSymbolic:
		return p.contentKey(p.sub(r).root(r), defStack)
	case refRaw:
		return p.intern(dataKey{raw: true, bs: r.IsBS, bits: uint64(r.index)})
	}

	if len(defStack) > 5 {
		var notes []Note
		for i := len(defStack) - 1; i >= 0; i-- {
			d := defStack[i]
			notes = append(notes, noteAt(fmt.Sprintf("Included from %s here:", d.typeName()), d.Tok))
		}
		raise("Constant pool definitions cannot be nested more than 5 deep (excluding raw references).", r.Tok, notes...)
	}

	children := make([]int, len(r.Refs))
	for i, child := range r.Refs {
		children[i] = p.contentKey(child, append(slices.Clip(defStack), r))
	}
	list := 0
	for i := len(children) - 1; i >= 0; i-- {
		list = p.internList(listKey{head: children[i], tail: list})
	}
	return p.intern(dataKey{tag: r.Tag, bs: r.IsBS, data: string(r.Data), bits: r.Bits, refs: list})
}

// resolve returns the slot index r refers to, allocating one for data
// references on first use.
func (p *Pool) resolve(r *Ref) int {
	if r.resolved {
		return r.slot
	}
	var slot int
	switch r.kind {
	case refRaw:
		slot = r.index
	case refSymbolic:
		slot = p.resolve(p.sub(r).root(r))
	default:
		slot = p.sub(r).allocate(r, p.contentKey(r, nil))
	}
	r.resolved, r.slot = true, slot
	return slot
}

// resolveInvokeDynamic makes sure the bootstrap methods of InvokeDynamic
// entries are allocated before the bootstrap table is sized.
func (p *Pool) resolveInvokeDynamic() {
	for _, i := range p.cp.slotOrder {
		if r := p.cp.slots[i]; r != nil && r.Tag == classfile.ConstantInvokeDynamic {
			p.resolve(r.Refs[0])
		}
	}
}

// settle resolves children of new entries in both tables until no further
// entries are created.
func (p *Pool) settle() {
	for {
		cp := p.cp.resolveDirty(p)
		bs := p.bs.resolveDirty(p)
		if !cp && !bs {
			return
		}
	}
}

// write returns the serialized constant pool and bootstrap method table.
// The bootstrap table starts with its u16 count.
func (p *Pool) write() (cp, bs *Writer) {
	p.settle()
	bs = p.bs.write(p)
	cp = p.cp.write(p)
	return cp, bs
}

// utf8At returns the bytes of the Utf8 entry in slot i.
func (p *Pool) utf8At(i int) ([]byte, bool) {
	r, ok := p.cp.slots[i]
	if !ok || r == nil || r.Tag != classfile.ConstantUtf8 {
		return nil, false
	}
	return r.Data, true
}

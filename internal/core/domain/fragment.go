package domain

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"regexp"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// StartAnchor is the InsertAfter anchor meaning "first child of the node being visited".
//
// The search visits the most recently appended branch first, so on a tree with
// children the sentinel lands at the front of that branch's deepest node, not at
// the front of the document.
const StartAnchor = "start"

// Fragment is an immutable node of a file: a run of text lines, an ordered list of
// child fragments, or an opaque binary payload.
//
// Every edit returns a new Fragment. Untouched subtrees are shared between the old and
// the new tree, so an edit allocates only the path from the root to the touched node.
type Fragment struct {
	name     string
	lines    []string
	children []*Fragment
	blob     []byte
	binary   bool
	digest   uint64
}

var emptyFragment = newFragment("", nil, nil, nil, false)

// EmptyFragment returns the anonymous fragment with no lines, children or payload.
func EmptyFragment() *Fragment {
	return emptyFragment
}

// NewText returns a leaf fragment holding the given lines.
// An empty name makes the fragment anonymous.
func NewText(name string, lines ...string) *Fragment {
	return newFragment(name, slices.Clone(lines), nil, nil, false)
}

// NewGroup returns a fragment whose content is the given children, in order.
func NewGroup(name string, children ...*Fragment) *Fragment {
	kids := make([]*Fragment, len(children))
	for i, c := range children {
		kids[i] = orEmpty(c)
	}
	return newFragment(name, nil, kids, nil, false)
}

// NewBinary returns an anonymous fragment carrying an opaque payload.
func NewBinary(content []byte) *Fragment {
	blob := content
	if blob == nil {
		blob = []byte{}
	}
	return newFragment("", nil, nil, bytes.Clone(blob), true)
}

// TextFragment splits text into lines and returns an anonymous leaf.
// A single trailing newline does not produce an extra empty line.
func TextFragment(text string) *Fragment {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return NewText("")
	}
	return NewText("", strings.Split(text, "\n")...)
}

var (
	holeLine    = regexp.MustCompile(`^\s*<<<([^>]*)>>>\s*$`)
	escapedHole = regexp.MustCompile(`<<<<([^>]*)>>>>`)
)

// ExpandSubparts builds a group named name from content lines.
//
// A line consisting of <<<hole>>> becomes an empty child named hole that later edits
// can fill with InsertInto; <<<<x>>>> is unescaped to the literal <<<x>>>. Runs of
// ordinary lines become anonymous leaves.
func ExpandSubparts(name string, lines []string) *Fragment {
	var parts []*Fragment
	var leading []string

	for _, line := range lines {
		if m := holeLine.FindStringSubmatch(line); m != nil {
			parts = append(parts, NewText("", leading...), NewText(m[1]))
			leading = nil
			continue
		}
		leading = append(leading, escapedHole.ReplaceAllString(line, "<<<$1>>>"))
	}

	if len(leading) > 0 {
		parts = append(parts, NewText("", leading...))
	}

	return NewGroup(name, parts...)
}

func newFragment(name string, lines []string, children []*Fragment, blob []byte, isBinary bool) *Fragment {
	f := &Fragment{
		name:     name,
		lines:    lines,
		children: children,
		blob:     blob,
		binary:   isBinary,
	}
	f.digest = f.computeDigest()
	return f
}

func orEmpty(f *Fragment) *Fragment {
	if f == nil {
		return emptyFragment
	}
	return f
}

func (f *Fragment) computeDigest() uint64 {
	h := xxhash.New()
	var buf [8]byte

	writeString := func(s string) {
		_, _ = h.Write(binary.LittleEndian.AppendUint64(buf[:0], uint64(len(s))))
		_, _ = h.WriteString(s)
	}

	if f.binary {
		_, _ = h.Write([]byte{'b'})
		writeString(f.name)
		_, _ = h.Write(binary.LittleEndian.AppendUint64(buf[:0], uint64(len(f.blob))))
		_, _ = h.Write(f.blob)
		return h.Sum64()
	}

	_, _ = h.Write([]byte{'t'})
	writeString(f.name)

	_, _ = h.Write(binary.LittleEndian.AppendUint64(buf[:0], uint64(len(f.lines))))
	for _, line := range f.lines {
		writeString(line)
	}

	_, _ = h.Write(binary.LittleEndian.AppendUint64(buf[:0], uint64(len(f.children))))
	for _, c := range f.children {
		_, _ = h.Write(binary.LittleEndian.AppendUint64(buf[:0], c.digest))
	}

	return h.Sum64()
}

// Name returns the fragment's name, or "" for an anonymous fragment.
func (f *Fragment) Name() string {
	return orEmpty(f).name
}

// Digest returns the structural hash of the fragment.
func (f *Fragment) Digest() uint64 {
	return orEmpty(f).digest
}

// IsBinary reports whether the fragment carries an opaque payload.
func (f *Fragment) IsBinary() bool {
	return orEmpty(f).binary
}

// OwnLines returns the lines held directly by this fragment, excluding children.
func (f *Fragment) OwnLines() []string {
	return slices.Clone(orEmpty(f).lines)
}

// Children returns the fragment's children in append order.
func (f *Fragment) Children() []*Fragment {
	return slices.Clone(orEmpty(f).children)
}

// IsEmpty reports whether the fragment has no lines, no children and no payload.
func (f *Fragment) IsEmpty() bool {
	f = orEmpty(f)
	return len(f.lines) == 0 && len(f.children) == 0 && !f.binary
}

// Equal reports whether f and other have the same name, content and child structure.
func (f *Fragment) Equal(other *Fragment) bool {
	f, other = orEmpty(f), orEmpty(other)
	if f == other {
		return true
	}
	if f.digest != other.digest || f.name != other.name || f.binary != other.binary {
		return false
	}
	if f.binary {
		return bytes.Equal(f.blob, other.blob)
	}
	if !slices.Equal(f.lines, other.lines) || len(f.children) != len(other.children) {
		return false
	}
	for i := range f.children {
		if !f.children[i].Equal(other.children[i]) {
			return false
		}
	}
	return true
}

// Lines returns every text line of the subtree in rendering order.
func (f *Fragment) Lines() []string {
	var out []string
	orEmpty(f).collectLines(&out)
	return out
}

func (f *Fragment) collectLines(out *[]string) {
	*out = append(*out, f.lines...)
	for _, c := range f.children {
		c.collectLines(out)
	}
}

// CountLines returns the number of text lines in the subtree.
func (f *Fragment) CountLines() int {
	f = orEmpty(f)
	n := len(f.lines)
	for _, c := range f.children {
		n += c.CountLines()
	}
	return n
}

// Bytes renders the fragment. Binary fragments render as their payload; otherwise
// every line is followed by a newline. A fragment without lines renders as nothing.
func (f *Fragment) Bytes() []byte {
	f = orEmpty(f)
	if f.binary {
		return bytes.Clone(f.blob)
	}
	var b bytes.Buffer
	f.render(&b)
	return b.Bytes()
}

// Text renders the fragment as a string.
func (f *Fragment) Text() string {
	return string(f.Bytes())
}

func (f *Fragment) render(b *bytes.Buffer) {
	for _, line := range f.lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	for _, c := range f.children {
		c.render(b)
	}
}

// Outline renders the fragment like Text, except that every named descendant is shown
// as a single "[... name ...]" line instead of its content.
func (f *Fragment) Outline() string {
	f = orEmpty(f)
	if f.binary {
		return string(f.blob)
	}
	var b bytes.Buffer
	for _, line := range f.lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	for _, c := range f.children {
		c.outline(&b)
	}
	return b.String()
}

func (f *Fragment) outline(b *bytes.Buffer) {
	if f.name != "" {
		b.WriteString("[... " + f.name + " ...]\n")
		return
	}
	if f.binary {
		b.Write(f.blob)
		return
	}
	for _, line := range f.lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	for _, c := range f.children {
		c.outline(b)
	}
}

func (f *Fragment) withChildren(children []*Fragment) *Fragment {
	return newFragment(f.name, f.lines, children, f.blob, f.binary)
}

// Append returns a copy of f with child added as its last child.
func (f *Fragment) Append(child *Fragment) *Fragment {
	f = orEmpty(f)
	children := make([]*Fragment, 0, len(f.children)+1)
	children = append(children, f.children...)
	children = append(children, orEmpty(child))
	return f.withChildren(children)
}

// InsertAfter splices child immediately after the sibling named anchor.
// The anchor StartAnchor inserts child as the first child of the first node visited.
func (f *Fragment) InsertAfter(child *Fragment, anchor string) (*Fragment, error) {
	child = orEmpty(child)
	return f.edit(anchor, func(n *Fragment) *Fragment {
		if anchor == StartAnchor {
			return n.withChildren(slices.Insert(slices.Clone(n.children), 0, child))
		}
		if i := n.childIndex(anchor); i >= 0 {
			return n.withChildren(slices.Insert(slices.Clone(n.children), i+1, child))
		}
		return nil
	})
}

// InsertBefore splices child immediately before the sibling named anchor.
func (f *Fragment) InsertBefore(child *Fragment, anchor string) (*Fragment, error) {
	child = orEmpty(child)
	return f.edit(anchor, func(n *Fragment) *Fragment {
		if i := n.childIndex(anchor); i >= 0 {
			return n.withChildren(slices.Insert(slices.Clone(n.children), i, child))
		}
		return nil
	})
}

// InsertInto appends child as the last child of the fragment named container.
func (f *Fragment) InsertInto(child *Fragment, container string) (*Fragment, error) {
	return f.edit(container, func(n *Fragment) *Fragment {
		if n.name == container {
			return n.Append(child)
		}
		return nil
	})
}

// Replace substitutes the whole subtree named target with replacement.
func (f *Fragment) Replace(replacement *Fragment, target string) (*Fragment, error) {
	replacement = orEmpty(replacement)
	return f.edit(target, func(n *Fragment) *Fragment {
		if n.name == target {
			return replacement
		}
		return nil
	})
}

// Recall returns the rendered text of the first fragment named name.
func (f *Fragment) Recall(name string) (string, error) {
	if name == "" {
		return "", NewFragmentNotFoundError(name)
	}
	found := orEmpty(f).find(name)
	if found == nil {
		return "", NewFragmentNotFoundError(name)
	}
	return found.Text(), nil
}

// Find returns the first fragment named name in search order.
func (f *Fragment) Find(name string) (*Fragment, bool) {
	if name == "" {
		return nil, false
	}
	found := orEmpty(f).find(name)
	return found, found != nil
}

func (f *Fragment) edit(name string, visit func(*Fragment) *Fragment) (*Fragment, error) {
	if name == "" {
		return nil, NewFragmentNotFoundError(name)
	}
	out := orEmpty(f).rewrite(visit)
	if out == nil {
		return nil, NewFragmentNotFoundError(name)
	}
	return out, nil
}

// rewrite applies visit in search order: children newest first, each child's whole
// subtree before its older siblings, and the node itself last. It returns the rebuilt
// tree for the first node visit accepts, or nil when visit accepts none.
func (f *Fragment) rewrite(visit func(*Fragment) *Fragment) *Fragment {
	for i := len(f.children) - 1; i >= 0; i-- {
		if r := f.children[i].rewrite(visit); r != nil {
			children := slices.Clone(f.children)
			children[i] = r
			return f.withChildren(children)
		}
	}
	return visit(f)
}

func (f *Fragment) find(name string) *Fragment {
	for i := len(f.children) - 1; i >= 0; i-- {
		if r := f.children[i].find(name); r != nil {
			return r
		}
	}
	if f.name == name {
		return f
	}
	return nil
}

// childIndex returns the index of the newest direct child named name, or -1.
func (f *Fragment) childIndex(name string) int {
	for i := len(f.children) - 1; i >= 0; i-- {
		if f.children[i].name == name {
			return i
		}
	}
	return -1
}

type fragmentJSON struct {
	Name     string      `json:"name,omitempty"`
	Lines    []string    `json:"lines,omitempty"`
	Children []*Fragment `json:"children,omitempty"`
	Blob     []byte      `json:"blob,omitempty"`
	Binary   bool        `json:"binary,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (f *Fragment) MarshalJSON() ([]byte, error) {
	f = orEmpty(f)
	return json.Marshal(fragmentJSON{
		Name:     f.name,
		Lines:    f.lines,
		Children: f.children,
		Blob:     f.blob,
		Binary:   f.binary,
	})
}

// UnmarshalJSON implements json.Unmarshaler. The digest is recomputed from the decoded content.
func (f *Fragment) UnmarshalJSON(data []byte) error {
	var dto fragmentJSON
	if err := json.Unmarshal(data, &dto); err != nil {
		return err
	}
	children := make([]*Fragment, len(dto.Children))
	for i, c := range dto.Children {
		children[i] = orEmpty(c)
	}
	if len(children) == 0 {
		children = nil
	}
	blob := dto.Blob
	if dto.Binary && blob == nil {
		blob = []byte{}
	}
	*f = *newFragment(dto.Name, dto.Lines, children, blob, dto.Binary)
	return nil
}

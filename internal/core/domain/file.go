package domain

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// File is one working-directory file: a name and the fragment tree holding its content.
// Files are values; edits return new Files.
type File struct {
	Name string    `json:"name"`
	Root *Fragment `json:"root"`
}

// EmptyFile returns the File for name with no content.
func EmptyFile(name string) File {
	return File{Name: name, Root: EmptyFragment()}
}

// BinaryFile returns a File whose content is the opaque payload content.
func BinaryFile(name string, content []byte) File {
	return File{Name: name, Root: NewBinary(content)}
}

// Fragment returns the file's root fragment, never nil.
func (f File) Fragment() *Fragment {
	return orEmpty(f.Root)
}

// IsEmpty reports whether the file has no lines, children or payload.
func (f File) IsEmpty() bool {
	return f.Fragment().IsEmpty()
}

// Equal reports whether f and other have the same name and structurally equal content.
func (f File) Equal(other File) bool {
	return f.Name == other.Name && f.Fragment().Equal(other.Fragment())
}

// Digest returns a structural hash over the name and content.
func (f File) Digest() uint64 {
	h := xxhash.New()
	var buf [8]byte
	_, _ = h.Write(binary.LittleEndian.AppendUint64(buf[:0], uint64(len(f.Name))))
	_, _ = h.WriteString(f.Name)
	_, _ = h.Write(binary.LittleEndian.AppendUint64(buf[:0], f.Fragment().Digest()))
	return h.Sum64()
}

// Bytes renders the file content.
func (f File) Bytes() []byte {
	return f.Fragment().Bytes()
}

// Text renders the file content as a string.
func (f File) Text() string {
	return f.Fragment().Text()
}

// CountLines returns the number of text lines in the file.
func (f File) CountLines() int {
	return f.Fragment().CountLines()
}

// Restart returns the file with its content discarded.
func (f File) Restart() File {
	return EmptyFile(f.Name)
}

// Feed places fragment in the file according to p.
func (f File) Feed(fragment *Fragment, p Placement) (File, error) {
	if err := p.Validate(); err != nil {
		return f, err
	}

	root := f.Fragment()
	var (
		next *Fragment
		err  error
	)

	switch p.Kind {
	case PlacementAppend:
		next = root.Append(fragment)
	case PlacementAfter:
		next, err = root.InsertAfter(fragment, p.Anchor)
	case PlacementBefore:
		next, err = root.InsertBefore(fragment, p.Anchor)
	case PlacementInto:
		next, err = root.InsertInto(fragment, p.Anchor)
	case PlacementReplace:
		next, err = root.Replace(fragment, p.Anchor)
	}
	if err != nil {
		return f, err
	}

	return File{Name: f.Name, Root: next}, nil
}

// Recall returns the text of the fragment named name, or the whole file when name is empty.
func (f File) Recall(name string) (string, error) {
	if name == "" {
		return f.Text(), nil
	}
	return f.Fragment().Recall(name)
}

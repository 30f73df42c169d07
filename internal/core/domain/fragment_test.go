package domain_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/weave/internal/core/domain"
)

func TestFragment_AppendAndReplace(t *testing.T) {
	root := domain.EmptyFragment().
		Append(domain.NewText("a", "x=1")).
		Append(domain.NewText("b", "x=2"))
	assert.Equal(t, "x=1\nx=2\n", root.Text())

	replaced, err := root.Replace(domain.NewText("", "x=9"), "a")
	require.NoError(t, err)
	assert.Equal(t, "x=9\nx=2\n", replaced.Text())

	// The receiver is untouched.
	assert.Equal(t, "x=1\nx=2\n", root.Text())
}

func TestFragment_SearchOrder(t *testing.T) {
	tests := []struct {
		name string
		edit func(*domain.Fragment) (*domain.Fragment, error)
		want string
	}{
		{
			name: "duplicate names resolve to the newest",
			edit: func(f *domain.Fragment) (*domain.Fragment, error) {
				return f.Replace(domain.NewText("", "new"), "dup")
			},
			want: "old\nmid\nnew\n",
		},
		{
			name: "insert after newest duplicate",
			edit: func(f *domain.Fragment) (*domain.Fragment, error) {
				return f.InsertAfter(domain.NewText("", "after"), "dup")
			},
			want: "old\nmid\nlatest\nafter\n",
		},
		{
			name: "insert before newest duplicate",
			edit: func(f *domain.Fragment) (*domain.Fragment, error) {
				return f.InsertBefore(domain.NewText("", "before"), "dup")
			},
			want: "old\nmid\nbefore\nlatest\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := domain.EmptyFragment().
				Append(domain.NewText("dup", "old")).
				Append(domain.NewText("", "mid")).
				Append(domain.NewText("dup", "latest"))

			got, err := tt.edit(root)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Text())
		})
	}
}

func TestFragment_SubtreeSearchedBeforeNode(t *testing.T) {
	inner := domain.NewGroup("outer", domain.NewText("outer", "nested"))
	root := domain.EmptyFragment().Append(inner)

	got, err := root.Replace(domain.NewText("", "swapped"), "outer")
	require.NoError(t, err)

	// The nested fragment is found before its parent of the same name.
	assert.Equal(t, "swapped\n", got.Text())
	found, ok := got.Find("outer")
	require.True(t, ok)
	assert.Equal(t, []string{"swapped"}, found.Lines())
}

func TestFragment_InsertIntoHole(t *testing.T) {
	body := domain.ExpandSubparts("main", []string{"x", "<<<body>>>", "y"})
	root := domain.EmptyFragment().Append(body)

	got, err := root.InsertInto(domain.NewText("", "  inner"), "body")
	require.NoError(t, err)
	assert.Equal(t, "x\n  inner\ny\n", got.Text())

	got, err = got.InsertInto(domain.NewText("", "  more"), "body")
	require.NoError(t, err)
	assert.Equal(t, "x\n  inner\n  more\ny\n", got.Text())
}

func TestExpandSubparts_Escapes(t *testing.T) {
	f := domain.ExpandSubparts("", []string{"a <<<<keep>>>> b", "  <<<hole>>>  "})
	assert.Equal(t, "a <<<keep>>> b\n", f.Text())

	hole, ok := f.Find("hole")
	require.True(t, ok)
	assert.True(t, hole.IsEmpty())
}

func TestFragment_Outline(t *testing.T) {
	f := domain.ExpandSubparts("main", []string{
		"def main():",
		"    <<<body>>>",
		"    return <<<<x>>>>",
	})
	assert.Equal(t, "def main():\n[... body ...]\n    return <<<x>>>\n", f.Outline())

	filled, err := f.InsertInto(domain.NewText("", "    print(1)"), "body")
	require.NoError(t, err)
	assert.Equal(t, "def main():\n[... body ...]\n    return <<<x>>>\n", filled.Outline())
	assert.Equal(t, "def main():\n    print(1)\n    return <<<x>>>\n", filled.Text())

	assert.Equal(t, "a\n", domain.NewText("named", "a").Outline())
	assert.Empty(t, domain.EmptyFragment().Outline())
}

func TestFragment_StartAnchor(t *testing.T) {
	t.Run("empty root", func(t *testing.T) {
		got, err := domain.EmptyFragment().InsertAfter(domain.NewText("", "0"), domain.StartAnchor)
		require.NoError(t, err)
		assert.Equal(t, "0\n", got.Text())
	})

	t.Run("lands in the newest branch", func(t *testing.T) {
		root := domain.EmptyFragment().
			Append(domain.NewText("a", "1")).
			Append(domain.NewText("b", "2"))

		got, err := root.InsertAfter(domain.NewText("c", "0"), domain.StartAnchor)
		require.NoError(t, err)
		assert.Equal(t, "1\n2\n0\n", got.Text())

		b, ok := got.Find("b")
		require.True(t, ok)
		require.Len(t, b.Children(), 1)
		assert.Equal(t, "c", b.Children()[0].Name())
	})

	t.Run("insert before has no sentinel", func(t *testing.T) {
		_, err := domain.EmptyFragment().InsertBefore(domain.NewText("", "0"), domain.StartAnchor)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrFragmentNotFound)
	})
}

func TestFragment_NotFound(t *testing.T) {
	root := domain.EmptyFragment().Append(domain.NewText("a", "x"))

	tests := []struct {
		name string
		call func() error
		want string
	}{
		{
			name: "replace",
			call: func() error { _, err := root.Replace(domain.NewText("", "y"), "missing"); return err },
			want: "missing",
		},
		{
			name: "insert after",
			call: func() error { _, err := root.InsertAfter(domain.NewText("", "y"), "missing"); return err },
			want: "missing",
		},
		{
			name: "insert before",
			call: func() error { _, err := root.InsertBefore(domain.NewText("", "y"), "missing"); return err },
			want: "missing",
		},
		{
			name: "insert into",
			call: func() error { _, err := root.InsertInto(domain.NewText("", "y"), "missing"); return err },
			want: "missing",
		},
		{
			name: "recall",
			call: func() error { _, err := root.Recall("missing"); return err },
			want: "missing",
		},
		{
			name: "empty name",
			call: func() error { _, err := root.Replace(domain.NewText("", "y"), ""); return err },
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrFragmentNotFound)

			name, ok := domain.IsFragmentNotFound(err)
			require.True(t, ok)
			assert.Equal(t, tt.want, name)
		})
	}
}

func TestFragment_Recall(t *testing.T) {
	root := domain.EmptyFragment().
		Append(domain.NewGroup("fn", domain.NewText("", "def f():"), domain.NewText("body", "    pass"))).
		Append(domain.NewText("", "f()"))

	text, err := root.Recall("fn")
	require.NoError(t, err)
	assert.Equal(t, "def f():\n    pass\n", text)

	text, err = root.Recall("body")
	require.NoError(t, err)
	assert.Equal(t, "    pass\n", text)
}

func TestFragment_StructuralEquality(t *testing.T) {
	build := func() *domain.Fragment {
		f := domain.EmptyFragment().
			Append(domain.NewText("a", "x=1")).
			Append(domain.NewText("b", "x=2"))
		f, err := f.InsertAfter(domain.NewText("c", "x=3"), "a")
		require.NoError(t, err)
		return f
	}

	first := build()

	// Unrelated trees built in between must not affect the result.
	garbage := domain.EmptyFragment()
	for range 10 {
		garbage = garbage.Append(domain.NewText("g", "noise"))
	}

	second := build()

	assert.NotSame(t, first, second)
	assert.True(t, first.Equal(second))
	assert.Equal(t, first.Digest(), second.Digest())
	assert.False(t, first.Equal(garbage))

	// Same text, different naming structure.
	renamed := domain.EmptyFragment().
		Append(domain.NewText("a", "x=1")).
		Append(domain.NewText("c", "x=3")).
		Append(domain.NewText("z", "x=2"))
	assert.Equal(t, first.Text(), renamed.Text())
	assert.False(t, first.Equal(renamed))
	assert.NotEqual(t, first.Digest(), renamed.Digest())
}

func TestFragment_StructuralSharing(t *testing.T) {
	left := domain.NewGroup("left", domain.NewText("l", "1"))
	right := domain.NewGroup("right", domain.NewText("r", "2"))
	root := domain.NewGroup("", left, right)

	got, err := root.InsertInto(domain.NewText("", "3"), "right")
	require.NoError(t, err)

	assert.Same(t, left, got.Children()[0])
	assert.NotSame(t, right, got.Children()[1])
}

func TestFragment_Binary(t *testing.T) {
	blob := domain.NewBinary([]byte{0x00, 0xff, 'a'})
	assert.Equal(t, []byte{0x00, 0xff, 'a'}, blob.Bytes())
	assert.True(t, blob.IsBinary())
	assert.False(t, blob.IsEmpty())
	assert.Equal(t, 0, blob.CountLines())

	assert.True(t, domain.NewBinary(nil).Equal(domain.NewBinary([]byte{})))
	assert.False(t, domain.NewBinary([]byte("x\n")).Equal(domain.TextFragment("x")))
}

func TestTextFragment(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		lines []string
	}{
		{name: "empty", text: "", lines: nil},
		{name: "single trailing newline", text: "a\n", lines: []string{"a"}},
		{name: "no trailing newline", text: "a\nb", lines: []string{"a", "b"}},
		{name: "blank line kept", text: "a\n\n", lines: []string{"a", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := domain.TextFragment(tt.text)
			assert.Equal(t, tt.lines, f.Lines())
			assert.Equal(t, len(tt.lines), f.CountLines())
		})
	}
}

func TestFragment_EmptyRendersNothing(t *testing.T) {
	assert.Empty(t, domain.EmptyFragment().Text())
	assert.True(t, domain.EmptyFragment().IsEmpty())
	assert.Empty(t, domain.NewGroup("g", domain.NewText("hole")).Text())
	assert.False(t, domain.NewGroup("g", domain.NewText("hole")).IsEmpty())
}

func TestFragment_JSON(t *testing.T) {
	root := domain.EmptyFragment().
		Append(domain.ExpandSubparts("main", []string{"def main():", "<<<body>>>"})).
		Append(domain.NewBinary([]byte{1, 2, 3}))

	data, err := json.Marshal(root)
	require.NoError(t, err)

	var decoded domain.Fragment
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, root.Equal(&decoded))
	assert.Equal(t, root.Digest(), decoded.Digest())

	err = json.Unmarshal([]byte(`{"lines": 3}`), &decoded)
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrFragmentNotFound))
}

func TestFragment_RenderGolden(t *testing.T) {
	root := domain.EmptyFragment().
		Append(domain.ExpandSubparts("main", []string{
			"def main():",
			"    <<<body>>>",
			"",
			"main()",
		}))

	var err error
	root, err = root.InsertInto(domain.NewText("", "    total = 0"), "body")
	require.NoError(t, err)
	root, err = root.InsertInto(domain.NewText("loop", "    for i in range(3):", "        total += i"), "body")
	require.NoError(t, err)
	root, err = root.InsertAfter(domain.NewText("", "    print(total)"), "loop")
	require.NoError(t, err)
	root, err = root.InsertBefore(domain.NewText("imports", "import sys", ""), "main")
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "render_nested", root.Bytes())
}

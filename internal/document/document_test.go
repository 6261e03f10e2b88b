// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package document

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/cad-export/internal/host/hosttest"
	"github.com/pdiddy/cad-export/pkg/types"
)

func TestRootObjects(t *testing.T) {
	tests := []struct {
		name string
		objs []types.Object
		want []string
	}{
		{
			name: "empty document",
			want: []string{},
		},
		{
			name: "flat document",
			objs: []types.Object{{Name: "A"}, {Name: "B"}},
			want: []string{"A", "B"},
		},
		{
			name: "tree",
			objs: []types.Object{
				{Name: "Body"},
				{Name: "Pad", Parents: []string{"Body"}},
				{Name: "Sketch", Parents: []string{"Pad"}},
				{Name: "Spreadsheet"},
			},
			want: []string{"Body", "Spreadsheet"},
		},
		{
			name: "object with multiple parents",
			objs: []types.Object{
				{Name: "Part"},
				{Name: "Assembly"},
				{Name: "Shared", Parents: []string{"Part", "Assembly"}},
			},
			want: []string{"Part", "Assembly"},
		},
		{
			name: "parent outside the document still counts",
			objs: []types.Object{{Name: "Link", Parents: []string{"Elsewhere"}}},
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roots := RootObjects(tt.objs)
			names := make([]string, len(roots))
			for i, o := range roots {
				names[i] = o.Name
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestOpen_Native(t *testing.T) {
	h := hosttest.NewFake()
	h.Files["design.FCStd"] = []types.Object{
		{Name: "Body", Label: "Body"},
		{Name: "Pad", Label: "Pad", Parents: []string{"Body"}},
	}
	ctx := context.Background()
	src := types.DocumentSource{Kind: types.KindNative, Path: "design.FCStd"}

	d, err := Open(ctx, h, src)
	require.NoError(t, err)
	assert.Equal(t, "design", d.Name)

	roots, err := d.Roots(ctx)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, "Body", roots[0].Label)

	require.NoError(t, d.Close(ctx))
	require.NoError(t, d.Close(ctx))
	assert.True(t, d.Closed())
	assert.Equal(t, []string{"design"}, h.CallsTo("close"))
	assert.Empty(t, h.OpenDocuments())
	assert.Empty(t, h.CallsTo("new"))
}

func TestOpen_Board(t *testing.T) {
	h := hosttest.NewFake()
	h.Files["boards/a.kicad_pcb"] = []types.Object{{Name: "Board", Label: "a"}}
	ctx := context.Background()

	d, err := Open(ctx, h, types.DocumentSource{Kind: types.KindBoard, Path: "boards/a.kicad_pcb"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, h.CallsTo("new"))
	assert.Equal(t, []string{"boards/a.kicad_pcb"}, h.CallsTo("import"))
	assert.Empty(t, h.CallsTo("open"))

	roots, err := d.Roots(ctx)
	require.NoError(t, err)
	assert.Len(t, roots, 1)
	require.NoError(t, d.Close(ctx))
}

func TestOpen_BoardImportFailureClosesDocument(t *testing.T) {
	h := hosttest.NewFake()
	h.FailImport["bad.kicad_pcb"] = errors.New("malformed board")

	d, err := Open(context.Background(), h, types.DocumentSource{Kind: types.KindBoard, Path: "bad.kicad_pcb"})
	require.Error(t, err)
	assert.Nil(t, d)
	assert.Contains(t, err.Error(), "importing board")
	assert.Contains(t, err.Error(), "malformed board")
	assert.Equal(t, []string{"bad"}, h.CallsTo("close"))
	assert.Empty(t, h.OpenDocuments())
}

func TestOpen_NativeFailure(t *testing.T) {
	t.Run("no handle", func(t *testing.T) {
		h := hosttest.NewFake()
		h.FailOpen["x.FCStd"] = errors.New("not a project file")

		_, err := Open(context.Background(), h, types.DocumentSource{Kind: types.KindNative, Path: "x.FCStd"})
		require.Error(t, err)
		assert.Empty(t, h.CallsTo("close"))
	})
	t.Run("partial handle is closed", func(t *testing.T) {
		h := hosttest.NewFake()
		h.FailOpen["x.FCStd"] = errors.New("recompute failed")
		h.OpenHandleOnError = true

		_, err := Open(context.Background(), h, types.DocumentSource{Kind: types.KindNative, Path: "x.FCStd"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "recompute failed")
		assert.Equal(t, []string{"x"}, h.CallsTo("close"))
		assert.Empty(t, h.OpenDocuments())
	})
}

func TestOpen_Unsupported(t *testing.T) {
	h := hosttest.NewFake()
	_, err := Open(context.Background(), h, types.DocumentSource{Kind: types.KindUnsupported, Path: "notes.txt"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedKind)
	assert.Contains(t, err.Error(), "notes.txt")
	assert.Empty(t, h.Calls)
}

func TestKindForPath(t *testing.T) {
	tests := map[string]types.DocumentKind{
		"a.FCStd":         types.KindNative,
		"a.fcstd":         types.KindNative,
		"dir/b.kicad_pcb": types.KindBoard,
		"dir/b.KICAD_PCB": types.KindBoard,
		"notes.txt":       types.KindUnsupported,
		"noext":           types.KindUnsupported,
		"a.fcstd.bak":     types.KindUnsupported,
	}
	for path, want := range tests {
		assert.Equal(t, want, types.KindForPath(path), path)
	}
}

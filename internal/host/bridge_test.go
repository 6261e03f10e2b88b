// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package host

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/cad-export/internal/prompt"
	"github.com/pdiddy/cad-export/pkg/types"
)

// pipeConn joins the client side of two pipes into one ReadWriteCloser.
type pipeConn struct {
	io.Reader
	io.WriteCloser
}

// fakeHost answers requests with handle; it may also emit events before
// the response by returning them in the first slice.
type handler func(method string, params json.RawMessage) (events []map[string]any, result any, errMsg string)

type recordedCall struct {
	Method string
	Params json.RawMessage
}

func startFakeHost(t *testing.T, h handler) (*Bridge, *prompt.LogPrompter, *[]recordedCall) {
	t.Helper()
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	calls := &[]recordedCall{}

	go func() {
		defer respW.Close()
		sc := bufio.NewScanner(reqR)
		enc := json.NewEncoder(respW)
		for sc.Scan() {
			var req struct {
				ID     int64           `json:"id"`
				Method string          `json:"method"`
				Params json.RawMessage `json:"params"`
			}
			if err := json.Unmarshal(sc.Bytes(), &req); err != nil {
				return
			}
			*calls = append(*calls, recordedCall{Method: req.Method, Params: req.Params})
			if req.Method == "quit" {
				_ = enc.Encode(map[string]any{"id": req.ID})
				return
			}
			events, result, errMsg := h(req.Method, req.Params)
			for _, ev := range events {
				_ = enc.Encode(ev)
			}
			resp := map[string]any{"id": req.ID}
			if errMsg != "" {
				resp["error"] = errMsg
			} else if result != nil {
				resp["result"] = result
			}
			_ = enc.Encode(resp)
		}
	}()

	p := prompt.NewLogPrompter(io.Discard)
	b := NewBridge(pipeConn{Reader: respR, WriteCloser: reqW}, p)
	return b, p, calls
}

func TestBridge_OpenObjectsClose(t *testing.T) {
	b, _, calls := startFakeHost(t, func(method string, params json.RawMessage) ([]map[string]any, any, string) {
		switch method {
		case "open":
			return nil, "design", ""
		case "objects":
			return nil, []types.Object{
				{Name: "Body", Label: "Body"},
				{Name: "Pad", Label: "Pad", Parents: []string{"Body"}},
			}, ""
		}
		return nil, nil, ""
	})
	ctx := context.Background()

	doc, err := b.OpenDocument(ctx, "design.FCStd")
	require.NoError(t, err)
	assert.Equal(t, "design", doc)

	objs, err := b.Objects(ctx, doc)
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.True(t, objs[0].IsRoot())
	assert.False(t, objs[1].IsRoot())

	require.NoError(t, b.CloseDocument(ctx, doc))
	require.NoError(t, b.Close())

	methods := make([]string, len(*calls))
	for i, c := range *calls {
		methods[i] = c.Method
	}
	assert.Equal(t, []string{"open", "objects", "close", "quit"}, methods)
	assert.JSONEq(t, `{"path":"design.FCStd"}`, string((*calls)[0].Params))
}

func TestBridge_HostError(t *testing.T) {
	b, _, _ := startFakeHost(t, func(method string, _ json.RawMessage) ([]map[string]any, any, string) {
		return nil, nil, "Mesh export supports only mesh objects"
	})

	err := b.Export(context.Background(), types.BackendMesh, "doc", []string{"Body"}, "out/a.stl")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHost))
	assert.Contains(t, err.Error(), "export")
	assert.Contains(t, err.Error(), "only mesh objects")
}

func TestBridge_DialogEventRoutedToPrompter(t *testing.T) {
	b, p, _ := startFakeHost(t, func(method string, _ json.RawMessage) ([]map[string]any, any, string) {
		if method == "activate_workbench" {
			return []map[string]any{
				{"event": "dialog", "parent": "main", "title": "StepUp", "text": "update available", "extras": []string{"x"}},
				{"event": "log", "text": "workbench loaded"},
			}, nil, ""
		}
		return nil, nil, ""
	})

	require.NoError(t, b.ActivateWorkbench(context.Background(), "KiCadStepUpWB"))

	msgs := p.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "StepUp", msgs[0].Title)
	assert.Equal(t, "update available", msgs[0].Text)
	assert.Equal(t, []string{"x"}, msgs[0].Extras)
}

func TestBridge_Params(t *testing.T) {
	stored := map[string]types.PrefValue{}
	b, _, _ := startFakeHost(t, func(method string, params json.RawMessage) ([]map[string]any, any, string) {
		var p struct {
			Namespace string          `json:"namespace"`
			Key       string          `json:"key"`
			Value     types.PrefValue `json:"value"`
		}
		_ = json.Unmarshal(params, &p)
		switch method {
		case "set_param":
			stored[p.Namespace+"/"+p.Key] = p.Value
			return nil, nil, ""
		case "get_param":
			v, ok := stored[p.Namespace+"/"+p.Key]
			return nil, map[string]any{"found": ok, "value": v}, ""
		}
		return nil, nil, "unexpected"
	})
	store := ParamStore{Host: b}
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "Mod/Import", "ExportLegacy")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "Mod/Import", "ExportLegacy", types.BoolValue(true)))
	require.NoError(t, store.Set(ctx, "Mod/Part/STEP", "Scheme", types.StringValue("AP214IS")))

	v, ok, err := store.Get(ctx, "Mod/Import", "ExportLegacy")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, types.BoolValue(true), v)

	v, _, err = store.Get(ctx, "Mod/Part/STEP", "Scheme")
	require.NoError(t, err)
	assert.Equal(t, types.StringValue("AP214IS"), v)
}

func TestBridge_HostExits(t *testing.T) {
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	go func() {
		_, _ = bufio.NewReader(reqR).ReadString('\n')
		respW.Close()
	}()
	b := NewBridge(pipeConn{Reader: respR, WriteCloser: reqW}, prompt.NewLogPrompter(io.Discard))

	_, err := b.OpenDocument(context.Background(), "a.FCStd")
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestBridge_CancelledContext(t *testing.T) {
	b, _, calls := startFakeHost(t, func(string, json.RawMessage) ([]map[string]any, any, string) {
		return nil, nil, ""
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.RunCommand(ctx, "Std_Save")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, *calls)
}

// startRawHost answers the n-th request line (from 0) with the raw lines
// returned by respond.
func startRawHost(t *testing.T, respond func(n int, req string) []string) (*Bridge, *[]string) {
	t.Helper()
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	var seen []string

	go func() {
		defer respW.Close()
		sc := bufio.NewScanner(reqR)
		for n := 0; sc.Scan(); n++ {
			seen = append(seen, sc.Text())
			for _, line := range respond(n, sc.Text()) {
				if _, err := io.WriteString(respW, line+"\n"); err != nil {
					return
				}
			}
		}
	}()

	b := NewBridge(pipeConn{Reader: respR, WriteCloser: reqW}, prompt.NewLogPrompter(io.Discard))
	b.SetLogger(log.New(io.Discard))
	return b, &seen
}

func TestBridge_SkipsHostChatter(t *testing.T) {
	b, _ := startRawHost(t, func(n int, _ string) []string {
		return []string{
			"FreeCAD 1.0.0, Libs: 1.0.0",
			"",
			fmt.Sprintf(`{"id":%d,"result":"board"}`, n+1),
		}
	})

	doc, err := b.NewDocument(context.Background(), "board")
	require.NoError(t, err)
	assert.Equal(t, "board", doc)
}

func TestBridge_ProtocolErrorBreaksBridge(t *testing.T) {
	b, seen := startRawHost(t, func(int, string) []string {
		return []string{`{"id":99}`}
	})
	ctx := context.Background()

	_, err := b.OpenDocument(ctx, "a.FCStd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")

	_, err = b.OpenDocument(ctx, "b.FCStd")
	assert.ErrorIs(t, err, ErrBroken)

	require.NoError(t, b.Close())
	assert.Len(t, *seen, 1, "a broken bridge sends nothing more, not even quit")
}

func TestBridge_HostErrorKeepsBridgeUsable(t *testing.T) {
	b, _ := startRawHost(t, func(n int, _ string) []string {
		if n == 0 {
			return []string{`{"id":1,"error":"RuntimeError: no open document x"}`}
		}
		return []string{fmt.Sprintf(`{"id":%d}`, n+1)}
	})
	ctx := context.Background()

	assert.ErrorIs(t, b.CloseDocument(ctx, "x"), ErrHost)
	assert.NoError(t, b.CloseDocument(ctx, "y"))
}

func TestBridgeScript_HandlesEveryMethod(t *testing.T) {
	methods := []string{
		methodOpen, methodNew, methodImportBoard, methodObjects, methodExport,
		methodClose, methodActivateWorkbench, methodRunCommand, methodHookDialogs,
		methodGetParam, methodSetParam, methodQuit,
	}
	for _, m := range methods {
		assert.Contains(t, BridgeScript, fmt.Sprintf("%q: ", m), "script has no handler for %s", m)
	}
}

func TestBridgeScript_ExportDispatch(t *testing.T) {
	for _, b := range types.Backends {
		if b == types.BackendGeneric {
			continue
		}
		assert.Contains(t, BridgeScript, fmt.Sprintf("backend == %q", string(b)))
	}
	for _, fn := range []string{"Mesh.export", "FreeCADGui.export", "ImportGui.export", "Import.export"} {
		assert.Contains(t, BridgeScript, fn)
	}
	assert.Contains(t, BridgeScript, "FreeCAD.ParamGet")
	assert.Contains(t, BridgeScript, "QMessageBox.information")
}

func TestDefaultCommand(t *testing.T) {
	cmd := DefaultCommand()
	require.Len(t, cmd, 3)
	assert.Equal(t, HostBinary, cmd[0])
	assert.Equal(t, "-c", cmd[1])
	assert.Equal(t, BridgeScript, cmd[2])
	assert.Contains(t, BridgeScript, "\nserve()")
}

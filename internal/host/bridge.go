// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package host

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/pdiddy/cad-export/internal/prompt"
	"github.com/pdiddy/cad-export/pkg/types"
)

// Methods understood by the bridge script.
const (
	methodOpen              = "open"
	methodNew               = "new"
	methodImportBoard       = "import_board"
	methodObjects           = "objects"
	methodExport            = "export"
	methodClose             = "close"
	methodActivateWorkbench = "activate_workbench"
	methodRunCommand        = "run_command"
	methodHookDialogs       = "hook_dialogs"
	methodGetParam          = "get_param"
	methodSetParam          = "set_param"
	methodQuit              = "quit"
)

// ErrBroken is returned by every call after the connection lost sync with
// the host.
var ErrBroken = errors.New("host bridge is broken")

type request struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// envelope is any line the host writes: a response carries ID, an
// unsolicited notification carries Event.
type envelope struct {
	ID     int64           `json:"id"`
	Event  string          `json:"event,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`

	// dialog event
	Parent string   `json:"parent,omitempty"`
	Title  string   `json:"title,omitempty"`
	Text   string   `json:"text,omitempty"`
	Extras []string `json:"extras,omitempty"`
}

// Bridge is a Host backed by a headless host process speaking JSON lines.
// Calls are synchronous and must not be made concurrently. Lines that are
// not JSON objects are host chatter and are logged at debug level. After a
// transport or protocol error the bridge is broken and refuses further
// calls.
type Bridge struct {
	conn     io.ReadWriteCloser
	enc      *json.Encoder
	r        *bufio.Reader
	prompter prompt.UserPrompter
	logger   *log.Logger
	nextID   int64
	broken   error
}

// NewBridge wraps conn. Dialog events are delivered to p.
func NewBridge(conn io.ReadWriteCloser, p prompt.UserPrompter) *Bridge {
	return &Bridge{
		conn:     conn,
		enc:      json.NewEncoder(conn),
		r:        bufio.NewReader(conn),
		prompter: p,
		logger:   log.NewWithOptions(os.Stderr, log.Options{Prefix: "host"}),
	}
}

// SetLogger replaces the logger used for host log events.
func (b *Bridge) SetLogger(l *log.Logger) { b.logger = l }

func (b *Bridge) call(ctx context.Context, method string, params, result any) error {
	if b.broken != nil {
		return fmt.Errorf("%s: %w: %v", method, ErrBroken, b.broken)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	b.nextID++
	id := b.nextID
	if err := b.enc.Encode(request{ID: id, Method: method, Params: params}); err != nil {
		return b.fail(fmt.Errorf("sending %s: %w", method, err))
	}

	for {
		env, err := b.next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return b.fail(fmt.Errorf("host exited during %s: %w", method, io.ErrUnexpectedEOF))
			}
			return b.fail(fmt.Errorf("reading %s response: %w", method, err))
		}
		if env.Event != "" {
			b.handleEvent(env)
			continue
		}
		if env.ID != id {
			return b.fail(fmt.Errorf("%s: response id %d does not match request id %d", method, env.ID, id))
		}
		if env.Error != "" {
			return fmt.Errorf("%w: %s: %s", ErrHost, method, env.Error)
		}
		if result != nil && len(env.Result) > 0 {
			if err := json.Unmarshal(env.Result, result); err != nil {
				return fmt.Errorf("decoding %s result: %w", method, err)
			}
		}
		return nil
	}
}

// fail marks the bridge broken and returns err.
func (b *Bridge) fail(err error) error {
	b.broken = err
	return err
}

// next returns the next protocol line, skipping anything that is not a
// JSON object.
func (b *Bridge) next() (envelope, error) {
	for {
		line, err := b.r.ReadBytes('\n')
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) > 0 && trimmed[0] == '{' {
			var env envelope
			if jerr := json.Unmarshal(trimmed, &env); jerr != nil {
				return envelope{}, jerr
			}
			return env, nil
		}
		if len(trimmed) > 0 {
			b.logger.Debug("host output", "line", string(trimmed))
		}
		if err != nil {
			return envelope{}, err
		}
	}
}

func (b *Bridge) handleEvent(env envelope) {
	switch env.Event {
	case "dialog":
		b.prompter.Info(env.Parent, env.Title, env.Text, env.Extras)
	case "log":
		b.logger.Info(env.Text)
	default:
		b.logger.Debug("ignoring host event", "event", env.Event)
	}
}

func (b *Bridge) OpenDocument(ctx context.Context, path string) (string, error) {
	var doc string
	err := b.call(ctx, methodOpen, map[string]string{"path": path}, &doc)
	return doc, err
}

func (b *Bridge) NewDocument(ctx context.Context, name string) (string, error) {
	var doc string
	err := b.call(ctx, methodNew, map[string]string{"name": name}, &doc)
	return doc, err
}

func (b *Bridge) ImportBoard(ctx context.Context, doc, path string) error {
	return b.call(ctx, methodImportBoard, map[string]string{"doc": doc, "path": path}, nil)
}

func (b *Bridge) Objects(ctx context.Context, doc string) ([]types.Object, error) {
	var objs []types.Object
	err := b.call(ctx, methodObjects, map[string]string{"doc": doc}, &objs)
	return objs, err
}

func (b *Bridge) Export(ctx context.Context, backend types.Backend, doc string, objects []string, dest string) error {
	return b.call(ctx, methodExport, map[string]any{
		"backend": backend,
		"doc":     doc,
		"objects": objects,
		"path":    dest,
	}, nil)
}

func (b *Bridge) CloseDocument(ctx context.Context, doc string) error {
	return b.call(ctx, methodClose, map[string]string{"doc": doc}, nil)
}

func (b *Bridge) ActivateWorkbench(ctx context.Context, name string) error {
	return b.call(ctx, methodActivateWorkbench, map[string]string{"name": name}, nil)
}

func (b *Bridge) RunCommand(ctx context.Context, name string) error {
	return b.call(ctx, methodRunCommand, map[string]string{"name": name}, nil)
}

func (b *Bridge) HookDialogs(ctx context.Context) error {
	return b.call(ctx, methodHookDialogs, nil, nil)
}

type paramResult struct {
	Found bool            `json:"found"`
	Value types.PrefValue `json:"value"`
}

func (b *Bridge) GetParam(ctx context.Context, namespace, key string) (types.PrefValue, bool, error) {
	var res paramResult
	err := b.call(ctx, methodGetParam, map[string]string{"namespace": namespace, "key": key}, &res)
	return res.Value, res.Found, err
}

func (b *Bridge) SetParam(ctx context.Context, namespace, key string, v types.PrefValue) error {
	return b.call(ctx, methodSetParam, map[string]any{
		"namespace": namespace,
		"key":       key,
		"value":     v,
	}, nil)
}

// Close asks the host to quit and releases the connection. A failed quit
// request still closes the connection; a broken bridge skips the request.
func (b *Bridge) Close() error {
	if b.broken != nil {
		return b.conn.Close()
	}
	quitErr := b.call(context.Background(), methodQuit, nil, nil)
	closeErr := b.conn.Close()
	if quitErr != nil && !errors.Is(quitErr, io.ErrUnexpectedEOF) {
		return errors.Join(quitErr, closeErr)
	}
	return closeErr
}

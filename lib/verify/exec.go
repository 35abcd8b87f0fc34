package verify

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/xoviat/capsynth/lib"
	"github.com/xoviat/capsynth/lib/draw"
)

// Exec runs an external verification tool once per request:
//
//	<tool> drc|pex <deck.json>
//
// The tool reads the deck and prints a report on stdout.
type Exec struct {
	Install *lib.ToolInstall
	Args    []string
	log     *zap.Logger
}

// NewExec locates the newest install of binary below root.
func NewExec(root, binary, minVersion string, log *zap.Logger) (*Exec, error) {
	install, err := lib.FindTool(root, binary, minVersion)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	log.Info("found verification tool",
		zap.String("binary", install.Command()),
		zap.String("version", install.Version))
	return &Exec{Install: install, log: log}, nil
}

func (e *Exec) Name() string {
	return "exec:" + e.Install.Binary + "@" + e.Install.Version
}

func (e *Exec) CheckRules(ctx context.Context, l Layout) (string, error) {
	return e.run(ctx, "drc", l)
}

func (e *Exec) ExtractParasitics(ctx context.Context, l Layout) (string, error) {
	return e.run(ctx, "pex", l)
}

func (e *Exec) run(ctx context.Context, mode string, l Layout) (string, error) {
	dir, err := os.MkdirTemp("", "capsynth-deck")
	if err != nil {
		return "", errors.Wrap(err, "create deck dir")
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "deck.json")
	fp, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, "create deck")
	}
	err = draw.Encode(fp, l.Deck())
	fp.Close()
	if err != nil {
		return "", err
	}

	args := append(append([]string{}, e.Args...), mode, path)
	cmd := exec.CommandContext(ctx, e.Install.Command(), args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	out := stdout.String()
	if err != nil {
		/*
			Rule checkers commonly exit non-zero when they find
			violations; a report on stdout still counts.
		*/
		if strings.Contains(out, "RESULT ") {
			return out, nil
		}
		e.log.Warn("verification tool failed",
			zap.String("mode", mode),
			zap.String("stderr", stderr.String()),
			zap.Error(err))
		return "", errors.Wrapf(err, "%s %s: %s", e.Install.Binary, mode, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// Package transcript exports a conversation history for operators.
// Exports are write-only; nothing in toolbridge reads them back.
package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	toolbridgeErrors "github.com/harunnryd/toolbridge/internal/errors"
	"github.com/harunnryd/toolbridge/internal/model/contract"
	"github.com/harunnryd/toolbridge/internal/pathutil"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

type Document struct {
	SessionID  string             `json:"session_id" yaml:"session_id"`
	Provider   string             `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model      string             `json:"model,omitempty" yaml:"model,omitempty"`
	ExportedAt time.Time          `json:"exported_at" yaml:"exported_at"`
	Messages   []contract.Message `json:"messages" yaml:"messages"`
}

// FormatFor picks YAML for .yaml/.yml files and JSON otherwise.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

func Encode(doc Document, format Format) ([]byte, error) {
	if doc.Messages == nil {
		doc.Messages = []contract.Message{}
	}

	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case FormatYAML:
		return yaml.Marshal(doc)
	default:
		return nil, toolbridgeErrors.InvalidInput(fmt.Sprintf("unsupported transcript format: %s", format))
	}
}

// Write atomically replaces path with the encoded document and returns the
// resolved path.
func Write(path string, doc Document) (string, error) {
	return WriteWithLock(path, doc, DefaultLockConfig())
}

// WriteWithLock is Write with an explicit lock policy. Concurrent writers of
// the same path are serialized through a sibling ".lock" file.
func WriteWithLock(path string, doc Document, lockCfg LockConfig) (string, error) {
	resolved, err := pathutil.EnsureParent(path)
	if err != nil {
		return "", toolbridgeErrors.Wrap(err, "transcript path")
	}

	if doc.ExportedAt.IsZero() {
		doc.ExportedAt = time.Now().UTC()
	}

	data, err := Encode(doc, FormatFor(resolved))
	if err != nil {
		return "", err
	}

	lock, err := acquireLock(resolved, lockCfg)
	if err != nil {
		return "", err
	}
	defer lock.unlock()

	if err := atomic.WriteFile(resolved, bytes.NewReader(data)); err != nil {
		return "", toolbridgeErrors.Wrap(err, "write transcript")
	}
	return resolved, nil
}

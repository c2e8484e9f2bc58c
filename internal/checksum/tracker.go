package checksum

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	// LedgerFileName is the ledger document stored in the configuration root.
	LedgerFileName = "checksum.yml"

	ledgerFilePermissionsConstant       = 0o644
	readLedgerErrorTemplateConstant     = "failed to read checksum ledger %s: %w"
	parseLedgerErrorTemplateConstant    = "failed to parse checksum ledger %s: %w"
	encodeLedgerErrorTemplateConstant   = "failed to encode checksum ledger: %w"
	writeLedgerErrorTemplateConstant    = "failed to write checksum ledger %s: %w"
	ledgerLoadedLogMessageConstant      = "checksum ledger loaded"
	ledgerSavedLogMessageConstant       = "checksum ledger saved"
	ledgerSkippedSaveLogMessageConstant = "checksum ledger empty, nothing to save"
	trackingDisabledLogMessageConstant  = "change tracking disabled, every document will be processed"
	logFieldLedgerPathConstant          = "ledger_path"
	logFieldEntryCountConstant          = "entries"
)

// Ledger maps relative document paths to content fingerprints.
type Ledger map[string]string

// Fingerprint returns the MD5 hex digest of content.
func Fingerprint(content []byte) string {
	digest := md5.Sum(content)
	return hex.EncodeToString(digest[:])
}

// Tracker compares documents against the persisted ledger and accumulates new fingerprints.
type Tracker struct {
	mutex      sync.Mutex
	ledgerPath string
	stored     Ledger
	recorded   Ledger
	disabled   bool
	logger     *zap.Logger
}

// OpenTracker loads the ledger stored under configurationRoot. A missing ledger is treated as empty.
func OpenTracker(configurationRoot string, logger *zap.Logger) (*Tracker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	ledgerPath := filepath.Join(configurationRoot, LedgerFileName)
	storedLedger := Ledger{}

	ledgerContent, readError := os.ReadFile(ledgerPath)
	switch {
	case errors.Is(readError, fs.ErrNotExist):
	case readError != nil:
		return nil, fmt.Errorf(readLedgerErrorTemplateConstant, ledgerPath, readError)
	default:
		if unmarshalError := yaml.Unmarshal(ledgerContent, &storedLedger); unmarshalError != nil {
			return nil, fmt.Errorf(parseLedgerErrorTemplateConstant, ledgerPath, unmarshalError)
		}
		if storedLedger == nil {
			storedLedger = Ledger{}
		}
	}

	logger.Debug(ledgerLoadedLogMessageConstant, zap.String(logFieldLedgerPathConstant, ledgerPath), zap.Int(logFieldEntryCountConstant, len(storedLedger)))

	return &Tracker{
		ledgerPath: ledgerPath,
		stored:     storedLedger,
		recorded:   copyLedger(storedLedger),
		logger:     logger,
	}, nil
}

// Disable makes Changed report every document as changed. Record keeps working.
func (tracker *Tracker) Disable() {
	tracker.mutex.Lock()
	defer tracker.mutex.Unlock()
	if !tracker.disabled {
		tracker.logger.Info(trackingDisabledLogMessageConstant)
	}
	tracker.disabled = true
}

// Disabled reports whether change tracking was turned off.
func (tracker *Tracker) Disabled() bool {
	tracker.mutex.Lock()
	defer tracker.mutex.Unlock()
	return tracker.disabled
}

// Changed reports whether content differs from the fingerprint stored for relativePath.
func (tracker *Tracker) Changed(relativePath string, content []byte) bool {
	tracker.mutex.Lock()
	defer tracker.mutex.Unlock()
	if tracker.disabled {
		return true
	}
	storedFingerprint, exists := tracker.stored[filepath.ToSlash(relativePath)]
	return !exists || storedFingerprint != Fingerprint(content)
}

// Record remembers the fingerprint of content for relativePath until Save.
func (tracker *Tracker) Record(relativePath string, content []byte) {
	tracker.mutex.Lock()
	defer tracker.mutex.Unlock()
	tracker.recorded[filepath.ToSlash(relativePath)] = Fingerprint(content)
}

// Entries returns a copy of the fingerprints that Save would persist.
func (tracker *Tracker) Entries() Ledger {
	tracker.mutex.Lock()
	defer tracker.mutex.Unlock()
	return copyLedger(tracker.recorded)
}

// Save persists the accumulated ledger. An empty ledger leaves the file system untouched.
func (tracker *Tracker) Save() error {
	tracker.mutex.Lock()
	defer tracker.mutex.Unlock()

	if len(tracker.recorded) == 0 {
		tracker.logger.Debug(ledgerSkippedSaveLogMessageConstant, zap.String(logFieldLedgerPathConstant, tracker.ledgerPath))
		return nil
	}

	encodedLedger, encodeError := encodeLedger(tracker.recorded)
	if encodeError != nil {
		return fmt.Errorf(encodeLedgerErrorTemplateConstant, encodeError)
	}
	if writeError := os.WriteFile(tracker.ledgerPath, encodedLedger, ledgerFilePermissionsConstant); writeError != nil {
		return fmt.Errorf(writeLedgerErrorTemplateConstant, tracker.ledgerPath, writeError)
	}

	tracker.stored = copyLedger(tracker.recorded)
	tracker.logger.Info(ledgerSavedLogMessageConstant, zap.String(logFieldLedgerPathConstant, tracker.ledgerPath), zap.Int(logFieldEntryCountConstant, len(tracker.recorded)))
	return nil
}

// encodeLedger writes entries in path order so the ledger diffs cleanly under version control.
func encodeLedger(ledger Ledger) ([]byte, error) {
	paths := make([]string, 0, len(ledger))
	for path := range ledger {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	mappingNode := &yaml.Node{Kind: yaml.MappingNode}
	for _, path := range paths {
		mappingNode.Content = append(mappingNode.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: path},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: ledger[path]},
		)
	}
	return yaml.Marshal(mappingNode)
}

func copyLedger(source Ledger) Ledger {
	duplicate := make(Ledger, len(source))
	for path, fingerprint := range source {
		duplicate[path] = fingerprint
	}
	return duplicate
}

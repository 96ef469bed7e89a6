package app

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lcb-go/internal/config"
	"lcb-go/internal/database"
	"lcb-go/internal/encryption"
	"lcb-go/internal/fs"
	"lcb-go/internal/lcb"
	"lcb-go/internal/mapping"
	"lcb-go/internal/media"
	"lcb-go/internal/vault"
)

// LCBApp is the application layer between the CLI and LCBService.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string paths, and manages the journal lifecycle on Close.
type LCBApp struct {
	cfg       *config.Config
	db        lcb.Database
	vault     lcb.Vault // nil when no vault is configured
	fsmgr     *fs.OSFilesystemManager
	encryptor lcb.Encryptor // nil when encryption is off
	service   *lcb.LCBService
	logger    lcb.Logger
	op        *Operation
	logFile   *os.File

	// savedMapping is the mapping table written during this operation,
	// uploaded to the vault on Close.
	savedMapping string
}

// OpRestoreMapping is the operation name of RestoreMapping. It is never
// journaled and skips the journal version check.
const OpRestoreMapping = "RestoreMapping"

// NewLCBApp creates a fully wired LCBApp from the given config.
// operation identifies the CLI command being run (e.g. "Classify", "Sync").
// The caller must call Close when done.
func NewLCBApp(cfg *config.Config, operation string) (*LCBApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	fsmgr := fs.NewOSFilesystemManager(cfg.Chats.Ignore)

	var v lcb.Vault
	if len(cfg.Vaults) > 0 {
		if v, err = vault.NewVaultFromConfig(cfg.Vaults[0]); err != nil {
			return nil, fmt.Errorf("creating vault: %w", err)
		}
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.HostID)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	// Check the local journal against the copy in the vault. Restoring
	// only reads from the vault and is how a behind host catches up.
	if v != nil && operation != OpRestoreMapping {
		remoteVersion, err := v.GetMetadataVersion(cfg.HostID, lcb.MetadataJournal)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("checking remote metadata version: %w", err)
		}

		localMax, err := db.MaxOperationID()
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("checking local metadata version: %w", err)
		}

		if remoteVersion > localMax {
			db.Close()
			return nil, fmt.Errorf("local journal is behind vault (local=%d, remote=%d): restore it or re-initialize", localMax, remoteVersion)
		}
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, opID, level)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	clock := lcb.RealClock{}
	svc := lcb.NewLCBService(fsmgr, db, nil, media.NewEXIFCaptureTimer(clock), logger, clock, cfg.Chats.ExplicitExtensions)

	return &LCBApp{
		cfg:       cfg,
		db:        db,
		vault:     v,
		fsmgr:     fsmgr,
		encryptor: enc,
		service:   svc,
		logger:    logger,
		op:        NewOperation(operation, ""),
		logFile:   logFile,
	}, nil
}

// SetupEncryption generates the age key pair named by cfg.
// It never replaces existing keys.
func SetupEncryption(cfg config.EncryptionConfig, passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(cfg)
	if err != nil {
		return err
	}
	if enc == nil {
		return fmt.Errorf("encryption is disabled in the config")
	}
	if err := enc.Setup(passphrase); err != nil {
		return fmt.Errorf("setting up encryption: %w", err)
	}
	return nil
}

// params formats key/value pairs for the journal's parameters column.
func params(kv ...string) string {
	parts := make([]string, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] == "" {
			continue
		}
		parts = append(parts, kv[i]+"="+kv[i+1])
	}
	return strings.Join(parts, " ")
}

// persistOperation saves the operation to the journal, giving it an
// auto-increment ID, and starts recording the service's actions under it.
// This should only be called for mutating commands.
func (a *LCBApp) persistOperation(parameters string) error {
	if a.op.Persisted() {
		return nil
	}
	a.op.Parameters = parameters
	dbOp, err := a.db.CreateOperation(a.op.Operation, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = dbOp.ID
	a.service.SetJournal(lcb.NewOperationJournal(a.db, a.op.ID))
	return nil
}

// resolveChats resolves a chats directory and loads its ignore file.
func (a *LCBApp) resolveChats(rawDir string) (*lcb.Path, error) {
	p, err := a.resolveDir(rawDir)
	if err != nil {
		return nil, err
	}
	patterns, err := fs.ParseIgnoreFile(filepath.Join(p.String(), fs.IgnoreFileName))
	if err != nil {
		return nil, err
	}
	if len(patterns) > 0 {
		a.fsmgr.AddIgnorePatterns(patterns)
	}
	return p, nil
}

func (a *LCBApp) resolveDir(rawDir string) (*lcb.Path, error) {
	p, err := a.fsmgr.Resolve(rawDir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	if !p.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", p.String())
	}
	return p, nil
}

// mappingStore returns the store for rawPath, or for the configured mapping
// table when rawPath is empty.
func (a *LCBApp) mappingStore(rawPath string) (*mapping.CSVStore, error) {
	if rawPath == "" {
		rawPath = a.cfg.Chats.MappingPath
	}
	if rawPath == "" {
		return nil, fmt.Errorf("no mapping table given and none configured")
	}
	abs, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving mapping path: %w", err)
	}
	return mapping.NewCSVStore(abs), nil
}

func (a *LCBApp) loadMapping(rawPath string) (*lcb.MappingTable, error) {
	store, err := a.mappingStore(rawPath)
	if err != nil {
		return nil, err
	}
	table, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading mapping table: %w", err)
	}
	return table, nil
}

// Classify sorts the loose message files of every room into their buckets.
func (a *LCBApp) Classify(rawDir string) (*lcb.ClassifyReport, error) {
	if err := a.persistOperation(params("dir", rawDir)); err != nil {
		return nil, err
	}
	dir, err := a.resolveChats(rawDir)
	if err != nil {
		return nil, a.op.Fail(err)
	}
	report, err := a.service.Classify(dir)
	return report, a.op.Fail(err)
}

// ExtractMapping merges the room folder names of rawDir into the mapping
// table at mappingPath and writes the table back.
func (a *LCBApp) ExtractMapping(rawDir, mappingPath string) (*lcb.ExtractReport, error) {
	if err := a.persistOperation(params("dir", rawDir, "mapping", mappingPath)); err != nil {
		return nil, err
	}
	report, err := a.extractMapping(rawDir, mappingPath)
	return report, a.op.Fail(err)
}

func (a *LCBApp) extractMapping(rawDir, mappingPath string) (*lcb.ExtractReport, error) {
	dir, err := a.resolveChats(rawDir)
	if err != nil {
		return nil, err
	}
	store, err := a.mappingStore(mappingPath)
	if err != nil {
		return nil, err
	}
	table, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading mapping table: %w", err)
	}

	report, err := a.service.ExtractMapping(dir, table)
	if err != nil {
		return nil, err
	}

	if err := store.Save(table); err != nil {
		return nil, fmt.Errorf("saving mapping table: %w", err)
	}
	a.savedMapping = store.Path()
	if _, err := a.db.CreateAction(a.op.ID, &lcb.Action{Kind: lcb.ActionWrite, Destination: store.Path()}); err != nil {
		a.logger.Error("recording action", "kind", string(lcb.ActionWrite), "dst", store.Path(), "err", err)
	}
	return report, nil
}

// PrefixRooms renames bare room folders of rawDir to the names recorded in
// the mapping table at mappingPath.
func (a *LCBApp) PrefixRooms(rawDir, mappingPath string) (*lcb.PrefixReport, error) {
	if err := a.persistOperation(params("dir", rawDir, "mapping", mappingPath)); err != nil {
		return nil, err
	}
	dir, err := a.resolveChats(rawDir)
	if err != nil {
		return nil, a.op.Fail(err)
	}
	table, err := a.loadMapping(mappingPath)
	if err != nil {
		return nil, a.op.Fail(err)
	}
	report, err := a.service.PrefixRooms(dir, table)
	return report, a.op.Fail(err)
}

// CompareRooms lists the rooms of rawDir missing from rawOld. It changes nothing.
func (a *LCBApp) CompareRooms(rawDir, rawOld string) (*lcb.CompareReport, error) {
	dir, err := a.resolveChats(rawDir)
	if err != nil {
		return nil, err
	}
	old, err := a.resolveDir(rawOld)
	if err != nil {
		return nil, err
	}
	return a.service.CompareRooms(dir, old)
}

// Sync copies what the rooms of rawDir lack from the rooms of rawSrc.
// A dry run is not journaled.
func (a *LCBApp) Sync(rawDir, rawSrc string, opts lcb.SyncOptions) (*lcb.SyncReport, error) {
	if !opts.DryRun {
		p := params("dir", rawDir, "src", rawSrc)
		if opts.SinceLastSync {
			p += " since_last_sync=true"
		}
		if err := a.persistOperation(p); err != nil {
			return nil, err
		}
	}
	dir, err := a.resolveChats(rawDir)
	if err != nil {
		return nil, a.op.Fail(err)
	}
	src, err := a.resolveDir(rawSrc)
	if err != nil {
		return nil, a.op.Fail(err)
	}
	report, err := a.service.Sync(dir, src, opts)
	return report, a.op.Fail(err)
}

// ApproximateMessageIDs collects the orphan thumbnails of the selected rooms.
// No room IDs means every room.
func (a *LCBApp) ApproximateMessageIDs(rawDir string, roomIDs []string) (*lcb.MessageIDReport, error) {
	if err := a.persistOperation(params("dir", rawDir, "rooms", strings.Join(roomIDs, ","))); err != nil {
		return nil, err
	}
	dir, err := a.resolveChats(rawDir)
	if err != nil {
		return nil, a.op.Fail(err)
	}
	report, err := a.service.ApproximateMessageIDs(dir, roomIDs)
	return report, a.op.Fail(err)
}

// RunOptions select the steps of a full run by raw path.
// Empty paths skip the step they feed.
type RunOptions struct {
	MappingPath    string // prefix rooms from this table, or from the configured one when it exists
	Source         string // synchronize from this tree
	Old            string // compare against this snapshot
	Sync           lcb.SyncOptions
	MessageIDs     bool
	MessageIDRooms []string
}

// Run performs the full pipeline on rawDir.
func (a *LCBApp) Run(rawDir string, opts RunOptions) (*lcb.PipelineReport, error) {
	if err := a.persistOperation(params("dir", rawDir, "mapping", opts.MappingPath, "src", opts.Source, "old", opts.Old)); err != nil {
		return nil, err
	}
	report, err := a.run(rawDir, opts)
	return report, a.op.Fail(err)
}

func (a *LCBApp) run(rawDir string, opts RunOptions) (*lcb.PipelineReport, error) {
	dir, err := a.resolveChats(rawDir)
	if err != nil {
		return nil, err
	}

	popts := lcb.PipelineOptions{
		Sync:           opts.Sync,
		MessageIDs:     opts.MessageIDs,
		MessageIDRooms: opts.MessageIDRooms,
	}
	mappingPath := opts.MappingPath
	if mappingPath == "" && a.cfg.Chats.MappingPath != "" {
		if _, err := os.Stat(a.cfg.Chats.MappingPath); err == nil {
			mappingPath = a.cfg.Chats.MappingPath
		}
	}
	if mappingPath != "" {
		if popts.Mapping, err = a.loadMapping(mappingPath); err != nil {
			return nil, err
		}
	}
	if opts.Source != "" {
		if popts.Source, err = a.resolveDir(opts.Source); err != nil {
			return nil, err
		}
	}
	if opts.Old != "" {
		if popts.Old, err = a.resolveDir(opts.Old); err != nil {
			return nil, err
		}
	}
	return a.service.Run(dir, popts)
}

// GetHistory returns the most recent operations.
func (a *LCBApp) GetHistory(limit int) ([]*lcb.Operation, error) {
	return a.service.GetHistory(limit)
}

// GetOperation returns one operation and the actions it performed.
func (a *LCBApp) GetOperation(id int64) (*lcb.OperationDetail, error) {
	return a.service.GetOperation(id)
}

// RestoreMapping downloads this host's mapping table from the vault and
// writes it to outPath, or to the configured mapping path when outPath is
// empty. passphrase unlocks the private key when encryption is on.
// Returns the number of valid records restored. The restore is not journaled.
func (a *LCBApp) RestoreMapping(passphrase, outPath string) (int, error) {
	if a.vault == nil {
		return 0, fmt.Errorf("no vault configured")
	}
	store, err := a.mappingStore(outPath)
	if err != nil {
		return 0, err
	}

	var raw bytes.Buffer
	if err := a.vault.GetMetadata(a.cfg.HostID, lcb.MetadataMapping, &raw); err != nil {
		return 0, fmt.Errorf("downloading mapping table: %w", err)
	}

	plain := &raw
	if a.encryptor != nil {
		dc, err := a.encryptor.Unlock(passphrase)
		if err != nil {
			return 0, fmt.Errorf("unlocking private key: %w", err)
		}
		plain = &bytes.Buffer{}
		if err := dc.Decrypt(&raw, plain); err != nil {
			return 0, fmt.Errorf("decrypting mapping table: %w", err)
		}
	}

	table, err := mapping.Decode(plain)
	if err != nil {
		return 0, err
	}
	if err := store.Save(table); err != nil {
		return 0, fmt.Errorf("saving mapping table: %w", err)
	}
	a.logger.Info("mapping restored", "path", store.Path(), "records", table.Len())
	return table.Len(), nil
}

// Close finalizes the operation and closes all resources.
// For persisted operations: finishes the operation record, snapshots the
// journal and uploads it, with any mapping table saved during the
// operation, to the vault. For non-persisted operations: just closes the database.
func (a *LCBApp) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if a.op.Persisted() {
		if err := a.db.FinishOperation(a.op.ID, a.op.Status); err != nil {
			keep(fmt.Errorf("finishing operation: %w", err))
		}

		// Snapshot the journal to a temp file
		var tmpPath string
		if a.vault != nil {
			tmpFile, err := os.CreateTemp("", "lcb-journal-*.db")
			if err != nil {
				keep(fmt.Errorf("creating temp file for journal snapshot: %w", err))
			} else {
				tmpPath = tmpFile.Name()
				tmpFile.Close()

				if err := a.db.BackupTo(tmpPath); err != nil {
					keep(fmt.Errorf("snapshotting journal: %w", err))
					tmpPath = ""
				}
			}
		}

		if err := a.db.Close(); err != nil {
			keep(fmt.Errorf("closing database: %w", err))
		}

		// Upload with version = operation ID
		if tmpPath != "" {
			keep(a.uploadMetadata(lcb.MetadataJournal, tmpPath, a.op.ID))
			os.Remove(tmpPath)
		}
		if a.vault != nil && a.savedMapping != "" {
			keep(a.uploadMetadata(lcb.MetadataMapping, a.savedMapping, a.op.ID))
		}
	} else {
		if err := a.db.Close(); err != nil {
			keep(fmt.Errorf("closing database: %w", err))
		}
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

// uploadMetadata uploads the file at path to the vault as the named
// metadata item, encrypting it first when encryption is on.
func (a *LCBApp) uploadMetadata(name, path string, version int64) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s for upload: %w", name, err)
	}
	defer f.Close()

	var (
		r    io.Reader = f
		size int64
	)
	if a.encryptor != nil {
		var buf bytes.Buffer
		if err := a.encryptor.Encrypt(f, &buf); err != nil {
			return fmt.Errorf("encrypting %s: %w", name, err)
		}
		r, size = &buf, int64(buf.Len())
	} else {
		info, err := f.Stat()
		if err != nil {
			return fmt.Errorf("stat %s: %w", name, err)
		}
		size = info.Size()
	}

	if err := a.vault.PutMetadata(a.cfg.HostID, name, r, size, version); err != nil {
		return fmt.Errorf("uploading %s to vault: %w", name, err)
	}
	a.logger.Info("metadata uploaded", "item", name, "version", version, "size", size)
	return nil
}

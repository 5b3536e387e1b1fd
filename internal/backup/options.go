package backup

// EncryptionOptions selects archive encryption. The password is never serialized.
type EncryptionOptions struct {
	Enabled  bool   `json:"enabled"`
	Password string `json:"-"`
}

// Options selects what a backup contains and how it is encoded.
type Options struct {
	IncludeSettings    bool              `json:"includeSettings"`
	IncludeSessions    bool              `json:"includeSessions"`
	IncludeSendHistory bool              `json:"includeSendHistory"`
	IncludeMediaMeta   bool              `json:"includeMediaMeta"`
	IncludeFiles       bool              `json:"includeFiles"`
	Compression        bool              `json:"compression"`
	Encryption         EncryptionOptions `json:"encryption"`
}

// DefaultOptions includes every data category, compressed, without raw files
// and without encryption.
func DefaultOptions() Options {
	return Options{
		IncludeSettings:    true,
		IncludeSessions:    true,
		IncludeSendHistory: true,
		IncludeMediaMeta:   true,
		Compression:        true,
	}
}

// Option overrides one field of the defaults.
type Option func(*Options)

// WithSettings toggles the settings document.
func WithSettings(on bool) Option { return func(o *Options) { o.IncludeSettings = on } }

// WithSessions toggles sessions.
func WithSessions(on bool) Option { return func(o *Options) { o.IncludeSessions = on } }

// WithSendHistory toggles send history.
func WithSendHistory(on bool) Option { return func(o *Options) { o.IncludeSendHistory = on } }

// WithMediaMeta toggles media metadata.
func WithMediaMeta(on bool) Option { return func(o *Options) { o.IncludeMediaMeta = on } }

// WithFiles toggles raw temp files. Files are only stored in compressed archives.
func WithFiles(on bool) Option { return func(o *Options) { o.IncludeFiles = on } }

// WithCompression toggles the zip container.
func WithCompression(on bool) Option { return func(o *Options) { o.Compression = on } }

// WithEncryption enables encryption with password. An empty password disables it.
func WithEncryption(password string) Option {
	return func(o *Options) {
		o.Encryption = EncryptionOptions{Enabled: password != "", Password: password}
	}
}

// WithOptions replaces all options at once.
func WithOptions(opts Options) Option { return func(o *Options) { *o = opts } }

// ApplyOptions merges overrides over DefaultOptions.
func ApplyOptions(overrides ...Option) Options {
	opts := DefaultOptions()
	for _, apply := range overrides {
		if apply != nil {
			apply(&opts)
		}
	}
	return opts
}

// Selection picks the categories a restore applies.
type Selection struct {
	Settings    bool `json:"settings"`
	Sessions    bool `json:"sessions"`
	SendHistory bool `json:"sendHistory"`
	MediaMeta   bool `json:"mediaMeta"`
}

// SelectionFromOptions mirrors the include flags of a backup.
func SelectionFromOptions(o Options) Selection {
	return Selection{
		Settings:    o.IncludeSettings,
		Sessions:    o.IncludeSessions,
		SendHistory: o.IncludeSendHistory,
		MediaMeta:   o.IncludeMediaMeta,
	}
}

// RestoreOptions controls a restore run.
type RestoreOptions struct {
	// Overwrite replaces existing settings and sessions instead of skipping them.
	Overwrite bool `json:"overwrite"`
	// Selective, when set, replaces the categories recorded in the backup.
	Selective *Selection `json:"selective,omitempty"`
	// DecryptionPassword opens encrypted archives.
	DecryptionPassword string `json:"-"`
	// RestoreFiles extracts archived raw files into the temp files directory.
	RestoreFiles bool `json:"restoreFiles,omitempty"`
}

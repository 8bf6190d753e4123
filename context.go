// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

import (
	"os"
	"sync/atomic"

	"github.com/saferwall/nmo/log"
)

// Options configures a Context.
type Options struct {

	// A custom logger. The default logs errors to stdout.
	Logger log.Logger

	// ArenaBlockSize tunes the session allocator block size, by default
	// 64 KiB.
	ArenaBlockSize int

	// ThreadPoolSize hints how many workers the embarrassingly parallel
	// pipeline phases may use. Zero keeps everything on the calling
	// goroutine; the output bytes are identical either way.
	ThreadPoolSize int

	// StrictPlugins makes unresolved plugin dependencies fatal, by
	// default (false).
	StrictPlugins bool

	// DropRawChunks discards every object's serialized chunk after
	// FinishLoading. By default (false) the chunks are retained for
	// byte-exact round trips.
	DropRawChunks bool

	// CompressionLevel is the deflate level used on save; zero or below
	// falls back to 6.
	CompressionLevel int

	// CompressionRatio is the keep threshold for beneficial compression;
	// non-positive falls back to 0.9.
	CompressionRatio float64
}

// Context is the process-independent root owning the registries shared by
// sessions. It is reference counted; the registries inside are created
// once and then treated as immutable.
type Context struct {
	refs     int32
	opts     Options
	logger   *log.Helper
	classes  *ClassRegistry
	managers []Manager
	plugins  *PluginRegistry
}

// NewContext creates a context with one reference held by the caller. The
// class registry consistency check runs here, before first use.
func NewContext(opts *Options) (*Context, error) {
	ctx := &Context{refs: 1, classes: Classes, plugins: NewPluginRegistry()}
	if opts != nil {
		ctx.opts = *opts
	}
	if ctx.opts.Logger == nil {
		ctx.logger = log.NewHelper(log.NewFilter(log.NewStdLogger(os.Stdout),
			log.FilterLevel(log.LevelError)))
	} else {
		ctx.logger = log.NewHelper(ctx.opts.Logger)
	}
	if !ctx.classes.Checked() {
		if err := ctx.classes.Check(); err != nil {
			return nil, err
		}
	}
	return ctx, nil
}

// Retain atomically adds a reference.
func (ctx *Context) Retain() {
	atomic.AddInt32(&ctx.refs, 1)
}

// Release atomically drops a reference. The context must not be used after
// the last release.
func (ctx *Context) Release() {
	if atomic.AddInt32(&ctx.refs, -1) < 0 {
		panic("nmo: context released more times than retained")
	}
}

// Classes returns the class registry.
func (ctx *Context) Classes() *ClassRegistry {
	return ctx.classes
}

// Plugins returns the host plugin registry.
func (ctx *Context) Plugins() *PluginRegistry {
	return ctx.plugins
}

// RegisterManager appends a manager; hooks run in registration order.
func (ctx *Context) RegisterManager(m Manager) {
	ctx.managers = append(ctx.managers, m)
}

// Managers returns the registered managers in registration order.
func (ctx *Context) Managers() []Manager {
	return ctx.managers
}

// Logger returns the context logger helper.
func (ctx *Context) Logger() *log.Helper {
	return ctx.logger
}

// compressionLevel resolves the configured deflate level.
func (ctx *Context) compressionLevel() int {
	if ctx.opts.CompressionLevel <= 0 {
		return DefaultCompressionLevel
	}
	return ctx.opts.CompressionLevel
}

// compressionRatio resolves the configured beneficial-compression
// threshold.
func (ctx *Context) compressionRatio() float64 {
	if ctx.opts.CompressionRatio <= 0 {
		return DefaultCompressionRatio
	}
	return ctx.opts.CompressionRatio
}

// Session scopes one load/save operation: it owns the arena the decoded
// graph lives in, the object repository, the ID remap of the last pipeline
// run and the diagnostics buffer. Sessions are not safe for concurrent
// use; clone sessions for parallel work.
type Session struct {
	ctx    *Context
	arena  *Arena
	repo   *Repository
	remap  *IDRemap
	logger *log.Helper

	maxSavedID    ID
	pluginDeps    []PluginDep
	includedFiles []string
	diags         []PluginDiagnostic
	hookDiags     []HookDiagnostic
}

// NewSession creates a session bound to the context. The context reference
// count is bumped for the session's lifetime; Close releases it.
func NewSession(ctx *Context) *Session {
	ctx.Retain()
	return &Session{
		ctx:    ctx,
		arena:  NewArena(ctx.opts.ArenaBlockSize),
		repo:   NewRepository(ctx.classes),
		remap:  NewIDRemap(),
		logger: ctx.logger,
	}
}

// Close releases the session's context reference and resets the arena.
// Objects decoded by the session are invalid afterwards.
func (s *Session) Close() {
	s.arena.Reset()
	s.ctx.Release()
}

// Context returns the owning context.
func (s *Session) Context() *Context {
	return s.ctx
}

// Arena returns the session arena.
func (s *Session) Arena() *Arena {
	return s.arena
}

// GetObjectRepository returns the session repository.
func (s *Session) GetObjectRepository() *Repository {
	return s.repo
}

// GetObjectIndex returns the repository's secondary index, or nil.
func (s *Session) GetObjectIndex() *ObjectIndex {
	return s.repo.Index()
}

// GetPluginDiagnostics returns the dependency diagnostics of the last
// load.
func (s *Session) GetPluginDiagnostics() []PluginDiagnostic {
	return s.diags
}

// GetHookDiagnostics returns the non-fatal manager hook failures of the
// last pipeline run.
func (s *Session) GetHookDiagnostics() []HookDiagnostic {
	return s.hookDiags
}

// Remap returns the file/runtime ID tables of the last pipeline run.
func (s *Session) Remap() *IDRemap {
	return s.remap
}

// IncludedFiles returns the included-file references of the last load.
func (s *Session) IncludedFiles() []string {
	return s.includedFiles
}

// PluginDeps returns the plugin dependencies of the last load.
func (s *Session) PluginDeps() []PluginDep {
	return s.pluginDeps
}

// MaxSavedID returns the largest file index of the last load.
func (s *Session) MaxSavedID() ID {
	return s.maxSavedID
}

package embedded

import (
	"context"
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cuemby/backfill/pkg/log"
	"github.com/cuemby/backfill/pkg/metrics"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"golang.org/x/sync/semaphore"
)

// DefaultShutdownTimeout bounds how long Shutdown waits for an in-flight call
const DefaultShutdownTimeout = 5 * time.Second

var (
	modulePattern   = regexp.MustCompile(`^[A-Za-z0-9_\-]+(\.[A-Za-z0-9_\-]+)*(/[A-Za-z0-9_\-]+(\.[A-Za-z0-9_\-]+)*)*$`)
	functionPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	errorType       = reflect.TypeOf((*error)(nil)).Elem()
)

// Score is the numeric result of a predictor call
type Score int64

// Options configures an Interpreter
type Options struct {
	// Watch reloads a module after its source files change
	Watch bool
	// ShutdownTimeout bounds the wait for an in-flight call on Shutdown
	ShutdownTimeout time.Duration
}

// Interpreter hosts predictor modules written in Go source and interpreted
// in-process by yaegi. Calls are serialized: at most one Invoke runs inside
// the interpreter at any time.
type Interpreter struct {
	opts   Options
	logger zerolog.Logger

	// sem serializes calls into interpreted code
	sem *semaphore.Weighted

	mu          sync.Mutex
	initialized bool
	searchPaths []string
	modules     map[string]*module // by module name
	scratch     string             // private GOPATH for flat search path layouts
	watcher     *fsnotify.Watcher
	watchDone   chan struct{}
}

// module is one loaded predictor module
type module struct {
	name    string
	dir     string // real directory of the module sources
	pkgName string
	interp  *interp.Interpreter
	funcs   map[string]reflect.Value
}

// NewInterpreter creates an uninitialized interpreter
func NewInterpreter(opts Options) *Interpreter {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}
	return &Interpreter{
		opts:    opts,
		logger:  log.WithComponent("predictor"),
		sem:     semaphore.NewWeighted(1),
		modules: make(map[string]*module),
	}
}

// Initialize prepares the interpreter to load modules from searchPaths, in
// order. Calling it again while initialized does nothing.
func (in *Interpreter) Initialize(searchPaths []string) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.initialized {
		in.logger.Debug().Msg("Predictor runtime already initialized")
		return nil
	}

	paths := make([]string, 0, len(searchPaths))
	for _, p := range searchPaths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			in.logger.Warn().Err(err).Str("path", p).Msg("Skipping predictor search path")
			continue
		}
		paths = append(paths, abs)
	}

	if in.opts.Watch {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create module watcher: %w", err)
		}
		in.watcher = watcher
		in.watchDone = make(chan struct{})
		go in.watch(watcher, in.watchDone)
	}

	in.searchPaths = paths
	in.initialized = true

	in.logger.Info().Strs("search_paths", paths).Msg("Predictor runtime initialized")
	return nil
}

// Initialized reports whether Invoke may be called
func (in *Interpreter) Initialized() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.initialized
}

// Shutdown releases all loaded modules. It waits up to the shutdown timeout
// for an in-flight call and is a no-op when not initialized.
func (in *Interpreter) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), in.opts.ShutdownTimeout)
	defer cancel()

	acquired := in.sem.Acquire(ctx, 1) == nil
	if acquired {
		defer in.sem.Release(1)
	}

	in.mu.Lock()
	if !in.initialized {
		in.mu.Unlock()
		return nil
	}
	if !acquired {
		in.logger.Warn().Msg("Predictor call still running, shutting down anyway")
	}

	watcher, watchDone, scratch := in.watcher, in.watchDone, in.scratch
	in.watcher = nil
	in.watchDone = nil
	in.scratch = ""
	in.modules = make(map[string]*module)
	in.searchPaths = nil
	in.initialized = false
	in.mu.Unlock()

	// The watch loop takes in.mu to evict, so it is joined without the lock
	var errs []error
	if watcher != nil {
		if err := watcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close module watcher: %w", err))
		}
		<-watchDone
	}
	if scratch != "" {
		if err := os.RemoveAll(scratch); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove scratch GOPATH: %w", err))
		}
	}

	in.logger.Info().Msg("Predictor runtime shut down")
	return errors.Join(errs...)
}

// Invoke loads moduleName, resolves function and calls it with arg. The
// call is abandoned, but keeps the interpreter busy until it returns, when
// ctx ends first.
func (in *Interpreter) Invoke(ctx context.Context, moduleName, function, arg string) (Score, error) {
	if err := in.sem.Acquire(ctx, 1); err != nil {
		return 0, newError(KindCallFailed, moduleName, function,
			fmt.Errorf("waiting for interpreter: %w", err))
	}

	type result struct {
		score Score
		err   error
	}
	resultCh := make(chan result, 1)

	go func() {
		defer in.sem.Release(1)
		score, err := in.invoke(moduleName, function, arg)
		resultCh <- result{score: score, err: err}
	}()

	select {
	case res := <-resultCh:
		return res.score, res.err
	case <-ctx.Done():
		// A result that raced the deadline still wins
		select {
		case res := <-resultCh:
			return res.score, res.err
		default:
		}
		return 0, newError(KindCallFailed, moduleName, function,
			fmt.Errorf("call abandoned: %w", ctx.Err()))
	}
}

// invoke runs with the semaphore held
func (in *Interpreter) invoke(moduleName, function, arg string) (score Score, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newError(KindCallFailed, moduleName, function, fmt.Errorf("panic: %v", r))
		}
	}()

	fn, err := in.lookup(moduleName, function)
	if err != nil {
		return 0, err
	}

	argv, err := convertArg(fn.Type(), arg)
	if err != nil {
		return 0, newError(KindArgumentConversion, moduleName, function, err)
	}

	out := fn.Call([]reflect.Value{argv})

	if len(out) == 2 && !out[1].IsNil() {
		callErr, _ := out[1].Interface().(error)
		return 0, newError(KindCallFailed, moduleName, function, callErr)
	}

	score, err = toScore(out[0])
	if err != nil {
		return 0, newError(KindBadResult, moduleName, function, err)
	}
	return score, nil
}

// lookup returns the cached function, loading the module if needed
func (in *Interpreter) lookup(moduleName, function string) (reflect.Value, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if !in.initialized {
		return reflect.Value{}, newError(KindNotInitialized, moduleName, function, nil)
	}
	if !modulePattern.MatchString(moduleName) {
		return reflect.Value{}, newError(KindModuleNotFound, moduleName, function,
			errors.New("invalid module name"))
	}
	if !functionPattern.MatchString(function) {
		return reflect.Value{}, newError(KindFunctionNotFound, moduleName, function,
			errors.New("invalid function name"))
	}

	mod, ok := in.modules[moduleName]
	if !ok {
		var err error
		mod, err = in.load(moduleName)
		if err != nil {
			return reflect.Value{}, newError(KindModuleNotFound, moduleName, function, err)
		}
		in.modules[moduleName] = mod
	}

	if fn, ok := mod.funcs[function]; ok {
		return fn, nil
	}

	v, err := mod.interp.Eval(mod.pkgName + "." + function)
	if err != nil {
		return reflect.Value{}, newError(KindFunctionNotFound, moduleName, function, err)
	}
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return reflect.Value{}, newError(KindFunctionNotFound, moduleName, function,
			fmt.Errorf("%s.%s is not callable", mod.pkgName, function))
	}
	if err := checkSignature(v.Type()); err != nil {
		return reflect.Value{}, newError(KindFunctionNotFound, moduleName, function, err)
	}

	mod.funcs[function] = v
	return v, nil
}

// load locates and interprets a module. Called with in.mu held.
func (in *Interpreter) load(moduleName string) (*module, error) {
	gopath, dir, err := in.resolve(moduleName)
	if err != nil {
		return nil, err
	}

	pkgName, err := packageName(dir)
	if err != nil {
		return nil, err
	}

	i := interp.New(interp.Options{GoPath: gopath})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("failed to load stdlib: %w", err)
	}
	if _, err := i.Eval(fmt.Sprintf("import %q", moduleName)); err != nil {
		return nil, fmt.Errorf("failed to import %s: %w", moduleName, err)
	}

	if in.watcher != nil {
		if err := in.watcher.Add(dir); err != nil {
			in.logger.Warn().Err(err).Str("dir", dir).Msg("Cannot watch predictor module")
		}
	}

	in.logger.Info().
		Str("module", moduleName).
		Str("dir", dir).
		Msg("Predictor module loaded")

	return &module{
		name:    moduleName,
		dir:     dir,
		pkgName: pkgName,
		interp:  i,
		funcs:   make(map[string]reflect.Value),
	}, nil
}

// resolve finds the first search path holding the module. A search path is
// either a GOPATH root (<path>/src/<module>) or a plain directory holding
// the module directory (<path>/<module>), which is exposed to the
// interpreter through a private GOPATH. Called with in.mu held.
func (in *Interpreter) resolve(moduleName string) (gopath, dir string, err error) {
	rel := filepath.FromSlash(moduleName)
	for _, p := range in.searchPaths {
		if d := filepath.Join(p, "src", rel); isDir(d) {
			resolved, err := filepath.EvalSymlinks(d)
			if err != nil {
				return "", "", err
			}
			return p, resolved, nil
		}
		if d := filepath.Join(p, rel); isDir(d) {
			resolved, err := filepath.EvalSymlinks(d)
			if err != nil {
				return "", "", err
			}
			gopath, err := in.link(moduleName, resolved)
			if err != nil {
				return "", "", err
			}
			return gopath, resolved, nil
		}
	}
	return "", "", fmt.Errorf("module %s not found in %v", moduleName, in.searchPaths)
}

// link exposes dir as <scratch>/src/<module>. Called with in.mu held.
func (in *Interpreter) link(moduleName, dir string) (string, error) {
	if in.scratch == "" {
		scratch, err := os.MkdirTemp("", "backfill-predictor-")
		if err != nil {
			return "", fmt.Errorf("failed to create scratch GOPATH: %w", err)
		}
		in.scratch = scratch
	}

	target := filepath.Join(in.scratch, "src", filepath.FromSlash(moduleName))
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return "", err
	}
	if err := os.Symlink(dir, target); err != nil {
		return "", fmt.Errorf("failed to link module: %w", err)
	}
	return in.scratch, nil
}

// evict drops modules whose sources live in dir
func (in *Interpreter) evict(dir string) {
	in.mu.Lock()
	defer in.mu.Unlock()

	for name, mod := range in.modules {
		if mod.dir != dir {
			continue
		}
		delete(in.modules, name)
		metrics.PredictorReloadsTotal.Inc()
		in.logger.Info().Str("module", name).Msg("Predictor module changed, will reload")
	}
}

// watch evicts modules on source changes until the watcher is closed
func (in *Interpreter) watch(w *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Ext(event.Name) != ".go" {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			in.evict(filepath.Dir(event.Name))
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			in.logger.Warn().Err(err).Msg("Predictor module watcher error")
		}
	}
}

// packageName reads the package clause of the first Go file in dir
func packageName(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	fset := token.NewFileSet()
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".go" || strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.PackageClauseOnly)
		if err != nil {
			return "", err
		}
		return f.Name.Name, nil
	}
	return "", fmt.Errorf("no Go files in %s", dir)
}

// checkSignature accepts func(string-like) T or func(string-like) (T, error)
func checkSignature(t reflect.Type) error {
	if t.NumIn() != 1 || t.IsVariadic() {
		return fmt.Errorf("%s must take exactly one argument", t)
	}
	switch t.NumOut() {
	case 1:
	case 2:
		if !t.Out(1).Implements(errorType) {
			return fmt.Errorf("second result of %s must be an error", t)
		}
	default:
		return fmt.Errorf("%s must return a score", t)
	}
	return nil
}

// convertArg turns the feature string into the function's parameter type
func convertArg(t reflect.Type, arg string) (reflect.Value, error) {
	if !utf8.ValidString(arg) {
		return reflect.Value{}, errors.New("argument is not valid UTF-8")
	}
	in := t.In(0)
	if in.Kind() != reflect.String {
		return reflect.Value{}, fmt.Errorf("cannot pass a string as %s", in)
	}
	return reflect.ValueOf(arg).Convert(in), nil
}

// toScore interprets a returned value: integers as is, booleans as 1 or 0,
// floats truncated toward zero
func toScore(v reflect.Value) (Score, error) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Score(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := v.Uint()
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("score %d out of range", u)
		}
		return Score(u), nil
	case reflect.Bool:
		if v.Bool() {
			return 1, nil
		}
		return 0, nil
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f < math.MinInt64 {
			return 0, fmt.Errorf("score %v out of range", f)
		}
		return Score(int64(f)), nil
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return 0, errors.New("nil score")
		}
		return toScore(v.Elem())
	case reflect.Invalid:
		return 0, errors.New("no score")
	default:
		return 0, fmt.Errorf("unsupported score type %s", v.Type())
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

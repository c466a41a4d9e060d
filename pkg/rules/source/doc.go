// Package source loads rule definitions for the evaluator.
//
// FileSource reads YAML or JSON rule files from a single file or a directory tree and
// validates every rule before returning it. Watcher follows a FileSource with
// fsnotify and delivers reloaded rule sets to a callback, debouncing bursts of
// editor events. MemorySource serves fixed rules in tests.
package source

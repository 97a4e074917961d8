//go:build !linux

package watcher

// detectFilesystemType has no statfs classification off Linux; fsnotify is
// tried first and polling takes over if it cannot watch the directory.
func detectFilesystemType(string) FilesystemType {
	return FSTypeUnknown
}

// Package storage keeps uploaded videos on local disk and hands finished
// artifact archives to object storage.
package storage

import "io"

// FileInfo describes an incoming upload.
type FileInfo struct {
	Filename    string
	ContentType string
	Size        int64
}

// Storage is the local video store.
type Storage interface {
	SaveFile(file io.Reader, info FileInfo) (string, error)
	OpenFile(path string) (io.ReadSeekCloser, error)
	DeleteFile(path string) error
}

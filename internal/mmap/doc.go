// Package mmap maps files read-only into memory.
//
// blobstore.LocalStore serves range reads from a Mapping so that copying a
// local blob into the cache does not go through a read buffer.
//
//	m, err := mmap.Open("assets/logo.png")
//	if err != nil { ... }
//	defer m.Close()
//	_ = m.Advise(mmap.AccessSequential)
//	r := io.NewSectionReader(m, 0, m.Size())
//
// Unix systems use mmap(2) and madvise(2); Windows uses MapViewOfFile and
// ignores access hints.
package mmap

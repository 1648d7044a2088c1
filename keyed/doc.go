// Package keyed stores values in a diskcache under arbitrary identifiers.
//
// Identifiers such as URLs or object names are hashed into cache keys with
// Key. A Manager wraps one Cache and streams values through an optional
// codec. A process holds at most one cache per directory: Open hands out
// handles sharing it through a Registry, New opens it unshared, and either
// fails with ErrDirectoryInUse while the directory is held elsewhere. A Loader
// fills a Manager from a blobstore on demand.
//
//	m, err := keyed.Open(keyed.Config{Dir: "./thumbs", AppVersion: 1, MaxSize: 256 << 20},
//	    keyed.WithCodec(codec.Zstd{}),
//	)
//	if err != nil {
//	    return err
//	}
//	defer m.Close()
//
//	m.Put("https://example.com/a.png", resp.Body)
//	path, ok := m.GetCacheFile("https://example.com/a.png")
package keyed

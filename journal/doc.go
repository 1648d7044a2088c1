// Package journal implements the append-only operation log behind the disk cache.
//
// The journal is the source of truth for which keys hold a committed value. The
// in-memory index of a cache is a replay of it. The format is line oriented text:
//
//	io.hupe1980.diskcache
//	1
//	<appVersion>
//
//	DIRTY 3400330d1dfc7f3f7f4b8d4d803dfcf6
//	CLEAN 3400330d1dfc7f3f7f4b8d4d803dfcf6 832
//	READ 3400330d1dfc7f3f7f4b8d4d803dfcf6
//	REMOVE 3400330d1dfc7f3f7f4b8d4d803dfcf6
//
// The first four lines are the header: a magic string, the format version, the
// application version and a blank line. Every following line is one [Record]:
//
//   - DIRTY: a writer was opened for the key. It must be followed by a CLEAN or a
//     REMOVE for the same key, otherwise the write was interrupted.
//   - CLEAN: the key now holds a readable value of the given length in bytes.
//   - REMOVE: the key no longer holds a value.
//   - READ: the key was read. Only used to restore access order.
//
// # Rebuild
//
// The log grows with every operation. [Rebuild] writes a compact journal holding
// one line per live key to journal.tmp and swaps it in with two renames through
// journal.bak. A crash at any point leaves a journal that [ReconcileBackup] can
// restore: if journal.bak exists without journal, the swap did not finish and the
// backup is renamed back; if both exist, the backup is stale and deleted.
package journal

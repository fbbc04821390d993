/*
Package titanyard provides the blob file layer of a key-value separated
LSM store: large values live in append-only blob files beside the base
engine, and a garbage collector reclaims the space of values that were
overwritten or deleted.

Titanyard targets on-disk format compatibility with Titan (the TiKV
blob-storage plugin for RocksDB) for blob files and the titandb
MANIFEST. It implements the metadata registry (one BlobStorage per
column family, persisted through a record-log MANIFEST), the GC picker
with its punch-hole and rewrite strategies, and the blob file readers
used to relocate live values.

# Usage

The package is written to sit beneath a host engine that owns the
registry mutex and drives flush, compaction and GC callbacks. Open
recovers the registry from an existing store directory or creates a
fresh one:

	var mu sync.Mutex
	opts := titanyard.DefaultOptions()
	fileSet, err := titanyard.Open("/path/to/db", opts, &mu, map[uint32]*titanyard.CFOptions{
		0: titanyard.DefaultCFOptions(),
	})

# Concurrency

A FileSet is safe for concurrent use once opened, under the contract
documented on its methods: operations marked REQUIRES expect the
registry mutex to be held by the caller. Individual blob file iterators
are not safe for concurrent use; each goroutine should use its own.

# Compatibility

Blob files and MANIFEST records written by titanyard are intended to be
readable by Titan on RocksDB v10.7.5 and vice versa.

Reference: Titan (tikv/titan) include/titan/db.h
*/
package titanyard

// Package config provides a decodable configuration struct for
// opening a pfio.FileIO, tagged for json/toml the way templexxx-logro's
// Config is tagged in the reference corpus. This package has no CLI or
// wire format of its own; it exists purely so an embedding application
// can decode its own config file into a shape this package understands.
package config

import (
	"os"

	"github.com/alexeymaximov/go-pfio"
)

// Options mirrors pfio.OpenOption/pfio.PreallocateMode as plain,
// serializable fields.
type Options struct {
	Path string `json:"path" toml:"path"`

	ReadOnly      bool `json:"read_only" toml:"read_only"`
	Create        bool `json:"create" toml:"create"`
	Mapped        bool `json:"mapped" toml:"mapped"`
	SyncIO        bool `json:"sync_io" toml:"sync_io"`
	DirectIO      bool `json:"direct_io" toml:"direct_io"`
	NonDurable    bool `json:"non_durable" toml:"non_durable"`
	RandomAccess  bool `json:"random_access" toml:"random_access"`
	Readahead     bool `json:"readahead" toml:"readahead"`
	CloseDontNeed bool `json:"close_dontneed" toml:"close_dontneed"`

	// Preallocate is one of "never", "optional", "always".
	Preallocate string `json:"preallocate" toml:"preallocate"`

	// Perm is the Unix file mode used when Create is set.
	Perm uint32 `json:"perm" toml:"perm"`

	// OpenFileCount sizes the positional-I/O handle pool; <= 0 defaults
	// to runtime.GOMAXPROCS(0).
	OpenFileCount int `json:"open_file_count" toml:"open_file_count"`
}

func (o *Options) openOption() pfio.OpenOption {
	var opt pfio.OpenOption
	if o.ReadOnly {
		opt |= pfio.ReadOnly
	}
	if o.Create {
		opt |= pfio.Create
	}
	if o.Mapped {
		opt |= pfio.Mapped
	}
	if o.SyncIO {
		opt |= pfio.SyncIO
	}
	if o.DirectIO {
		opt |= pfio.DirectIO
	}
	if o.NonDurable {
		opt |= pfio.NonDurable
	}
	if o.RandomAccess {
		opt |= pfio.RandomAccess
	}
	if o.Readahead {
		opt |= pfio.Readahead
	}
	if o.CloseDontNeed {
		opt |= pfio.CloseDontNeed
	}
	return opt
}

func (o *Options) preallocateMode() pfio.PreallocateMode {
	switch o.Preallocate {
	case "optional":
		return pfio.PreallocateOptional
	case "always":
		return pfio.PreallocateAlways
	default:
		return pfio.PreallocateNever
	}
}

// Open opens a pfio.FileIO using these options.
func (o *Options) Open() (*pfio.FileIO, error) {
	perm := os.FileMode(o.Perm)
	if perm == 0 {
		perm = 0600
	}
	return pfio.Open(o.Path, o.openOption(), perm, o.preallocateMode(), o.OpenFileCount)
}

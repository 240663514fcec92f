package runtime

import (
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// Manifest fingerprints a set of output paths: existence, the newest
// modification time among them, and (for regular files below
// fingerprintSizeLimit) an xxhash content digest. IsFresh decides on
// modification times only; it does not consult the digests.
type Manifest struct {
	Exist     bool
	NewestMod int64 // unix nanos; zero if Exist is false
	Digests   map[string]uint64
}

const fingerprintSizeLimit = 64 << 20 // 64MiB; directories (MS paths) are skipped

// Fingerprint stats every path and, for regular files under the size
// limit, hashes its content with xxhash for a manifest comparison more
// precise than mtime alone.
func Fingerprint(paths []string) (Manifest, error) {
	m := Manifest{Exist: true, Digests: map[string]uint64{}}
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			m.Exist = false
			continue
		}
		if mt := info.ModTime().UnixNano(); mt > m.NewestMod {
			m.NewestMod = mt
		}
		if info.IsDir() || info.Size() > fingerprintSizeLimit {
			continue
		}
		f, err := os.Open(p)
		if err != nil {
			continue
		}
		h := xxhash.New()
		_, _ = io.Copy(h, f)
		f.Close()
		m.Digests[p] = h.Sum64()
	}
	return m, nil
}

// IsFresh implements skip_if_outputs: "fresh" — every output exists and
// is at least as new as the newest of the given input paths (inputs
// marked skip_freshness_checks are excluded by the caller before this is
// invoked).
func IsFresh(outputs []string, inputs []string) (bool, error) {
	outManifest, err := Fingerprint(outputs)
	if err != nil || !outManifest.Exist {
		return false, err
	}
	inManifest, err := Fingerprint(inputs)
	if err != nil {
		return false, err
	}
	for _, p := range outputs {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil || info.ModTime().UnixNano() < inManifest.NewestMod {
			return false, nil
		}
	}
	return true, nil
}

// Exists implements skip_if_outputs: "exist" — every declared output
// path is present on disk, regardless of age.
func Exists(outputs []string) bool {
	m, _ := Fingerprint(outputs)
	return m.Exist
}

// Changed reports whether any output's content digest differs between
// two fingerprints of the same path set. Nothing in the module calls it.
func (m Manifest) Changed(prev Manifest) bool {
	for p, d := range m.Digests {
		if pd, ok := prev.Digests[p]; !ok || pd != d {
			return true
		}
	}
	return false
}

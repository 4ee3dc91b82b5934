// Package online recomputes authoritative digests straight from the
// distribution server. The cheap path fetches only the control member
// of a package archive with two ranged requests; the expensive path
// downloads the whole package and hashes its data payload.
package online

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/blackwell-systems/debtrust/internal/deb"
	"github.com/blackwell-systems/debtrust/internal/hashes"
)

// probeSize is the initial ranged read: enough for the ar magic, the
// debian-binary member (header + tiny payload) and the control member
// header.
const probeSize = 512

// DefaultTimeout bounds every retrieval so a non-responsive source
// degrades the affected files to whatever can be established locally
// instead of halting the run.
const DefaultTimeout = 30 * time.Second

// Verifier fetches package archives. Each distinct URI is retrieved at
// most once per run per strategy; failures are cached too, so a dead
// mirror is not retried for every file it owns.
type Verifier struct {
	client *http.Client
	log    *slog.Logger

	recorded map[string]map[string]string
	computed map[string]map[string]string
}

// New returns a Verifier with the given per-request timeout.
func New(timeout time.Duration, logger *slog.Logger) *Verifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{
		client:   &http.Client{Timeout: timeout},
		log:      logger,
		recorded: make(map[string]map[string]string),
		computed: make(map[string]map[string]string),
	}
}

// RecordedDigests returns the (path -> digest) pairs recorded in the
// md5sums control entry of the package at uri, using two ranged
// requests bounded by the control member size. Failure is logged and
// reported as absent, never fatal.
func (v *Verifier) RecordedDigests(uri string) (map[string]string, bool) {
	if cached, ok := v.recorded[uri]; ok {
		return cached, cached != nil
	}

	digests, err := v.fetchRecorded(uri)
	if err != nil {
		v.log.Warn("online metadata fetch failed", "uri", uri, "error", err)
		v.recorded[uri] = nil
		return nil, false
	}
	v.recorded[uri] = digests
	return digests, true
}

// PackageDigests downloads the complete package at uri and returns a
// digest for every regular file in its data payload. Failure is logged
// and reported as absent.
func (v *Verifier) PackageDigests(uri string) (map[string]string, bool) {
	if cached, ok := v.computed[uri]; ok {
		return cached, cached != nil
	}

	digests, err := v.fetchFull(uri)
	if err != nil {
		v.log.Warn("online package fetch failed", "uri", uri, "error", err)
		v.computed[uri] = nil
		return nil, false
	}
	v.computed[uri] = digests
	return digests, true
}

func (v *Verifier) fetchRecorded(uri string) (map[string]string, error) {
	// First round trip: the archive prologue plus the headers before
	// and after the debian-binary member.
	probe, _, err := v.get(uri, 0, probeSize-1)
	if err != nil {
		return nil, err
	}
	defer probe.Close()

	head, err := io.ReadAll(io.LimitReader(probe, probeSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read archive head: %w", err)
	}
	control, payloadStart, err := locateControlMember(head)
	if err != nil {
		return nil, err
	}

	// Second round trip: exactly the control member payload.
	body, status, err := v.get(uri, payloadStart, payloadStart+control.Size-1)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var payload io.Reader = io.LimitReader(body, control.Size)
	if status == http.StatusOK {
		// Server ignored the range and sent the whole file.
		if _, err := io.CopyN(io.Discard, body, payloadStart); err != nil {
			return nil, fmt.Errorf("failed to skip to control member: %w", err)
		}
		payload = io.LimitReader(body, control.Size)
	}

	member, err := deb.OpenMember(control.Name, payload)
	if err != nil {
		return nil, err
	}
	sums, err := deb.ScanTarEntry(member, "md5sums")
	if err != nil {
		return nil, err
	}

	digests := make(map[string]string)
	for _, rd := range deb.ParseMD5Sums(sums) {
		digests[rd.Path] = rd.Digest
	}
	return digests, nil
}

// locateControlMember parses the fixed prologue out of the probe bytes
// and returns the control member plus the absolute offset of its
// payload within the archive.
func locateControlMember(head []byte) (deb.Member, int64, error) {
	if len(head) < len(deb.Magic)+deb.HeaderSize {
		return deb.Member{}, 0, fmt.Errorf("archive head too short: %d bytes", len(head))
	}
	if string(head[:len(deb.Magic)]) != deb.Magic {
		return deb.Member{}, 0, fmt.Errorf("bad archive magic")
	}

	off := int64(len(deb.Magic))
	name, size, err := deb.ParseHeader(head[off:])
	if err != nil {
		return deb.Member{}, 0, err
	}
	if name != "debian-binary" {
		return deb.Member{}, 0, deb.ErrBadLayout
	}
	off += deb.HeaderSize + size + size%2

	if int64(len(head)) < off+deb.HeaderSize {
		return deb.Member{}, 0, fmt.Errorf("archive head too short for control header")
	}
	name, size, err = deb.ParseHeader(head[off:])
	if err != nil {
		return deb.Member{}, 0, err
	}
	control := deb.Member{Name: name, Size: size, Offset: off + deb.HeaderSize}
	if err := deb.ValidateLayout([]deb.Member{{Name: "debian-binary"}, control, {Name: "data.tar"}}); err != nil {
		return deb.Member{}, 0, err
	}
	return control, control.Offset, nil
}

func (v *Verifier) fetchFull(uri string) (map[string]string, error) {
	body, _, err := v.get(uri, -1, -1)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := skipToDataMember(body)
	if err != nil {
		return nil, err
	}

	digests := make(map[string]string)
	err = deb.WalkDataTar(data.Name, io.LimitReader(body, data.Size), func(path string, content io.Reader) error {
		digest, err := hashes.SumReader(content)
		if err != nil {
			return fmt.Errorf("failed to hash %s: %w", path, err)
		}
		digests[path] = digest
		return nil
	})
	if err != nil {
		return nil, err
	}
	return digests, nil
}

// skipToDataMember consumes the archive stream up to the data member
// payload and returns that member. The three-member layout is enforced
// on the way.
func skipToDataMember(r io.Reader) (deb.Member, error) {
	var magic [len(deb.Magic)]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return deb.Member{}, fmt.Errorf("failed to read archive magic: %w", err)
	}
	if !bytes.Equal(magic[:], []byte(deb.Magic)) {
		return deb.Member{}, fmt.Errorf("bad archive magic")
	}

	var members []deb.Member
	var hdr [deb.HeaderSize]byte
	for i := 0; i < 3; i++ {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return deb.Member{}, fmt.Errorf("truncated archive: %w", err)
		}
		name, size, err := deb.ParseHeader(hdr[:])
		if err != nil {
			return deb.Member{}, err
		}
		members = append(members, deb.Member{Name: name, Size: size})
		if i < 2 {
			skip := size + size%2
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return deb.Member{}, fmt.Errorf("member %s: declared size %d exceeds available bytes", name, size)
			}
		}
	}
	if err := deb.ValidateLayout(members); err != nil {
		return deb.Member{}, err
	}
	return members[2], nil
}

// get issues a GET, optionally with a byte range. Both 200 and 206 are
// success; anything else is an error. The returned status lets callers
// detect a server that ignored the range.
func (v *Verifier) get(uri string, start, end int64) (io.ReadCloser, int, error) {
	req, err := http.NewRequest(http.MethodGet, uri, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("bad source uri %s: %w", uri, err)
	}
	if start >= 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		resp.Body.Close()
		return nil, resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return resp.Body, resp.StatusCode, nil
}

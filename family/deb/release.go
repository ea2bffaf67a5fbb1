package deb

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"
)

// release is the parsed subset of a Release/InRelease file: the stanza
// header fields plus the per-path checksum sections (spec.md §4.4, §4.8).
//
// Release's checksum sections are RFC 822-shaped but not RFC 822-foldable:
// each section name ("MD5Sum:", "SHA1:", "SHA256:") is followed by one
// indented "<hash> <size> <path>" line per file, which net/textproto's
// header folding would collapse into a single space-joined value and lose
// the per-line structure this needs, so the stanza is walked by hand
// instead of through textproto.Reader.ReadMIMEHeader (contrast
// parsePackages in parser.go, where per-stanza values genuinely are single
// lines and textproto is the right tool).
type release struct {
	Origin        string
	Label         string
	Suite         string
	Codename      string
	Components    []string
	Architectures []string
	SHA256        map[string]checksumEntry // path -> entry, from the "SHA256:" section
}

type checksumEntry struct {
	Hash string
	Size int64
	Path string
}

func parseRelease(raw []byte) (release, error) {
	r := release{SHA256: map[string]checksumEntry{}}
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var section string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			if section == "sha256" {
				fields := strings.Fields(line)
				if len(fields) == 3 {
					size, err := strconv.ParseInt(fields[1], 10, 64)
					if err == nil {
						r.SHA256[fields[2]] = checksumEntry{Hash: fields[0], Size: size, Path: fields[2]}
					}
				}
			}
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(key) {
		case "md5sum", "sha1":
			section = "" // not needed for publish verification, only SHA256
		case "sha256":
			section = "sha256"
		case "origin":
			r.Origin, section = value, ""
		case "label":
			r.Label, section = value, ""
		case "suite":
			r.Suite, section = value, ""
		case "codename":
			r.Codename, section = value, ""
		case "components":
			r.Components, section = strings.Fields(value), ""
		case "architectures":
			r.Architectures, section = strings.Fields(value), ""
		default:
			section = ""
		}
	}
	return r, scanner.Err()
}

// binaryPath renders the repository-relative path of a component/arch's
// Packages file under dists/<suite>/.
func binaryPath(component, arch, ext string) string {
	p := component + "/binary-" + arch + "/Packages"
	if ext != "" {
		p += "." + ext
	}
	return p
}

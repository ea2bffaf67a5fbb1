package deb

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/armor"
	"golang.org/x/crypto/openpgp/clearsign"

	"github.com/slauger/chantal"
	"github.com/slauger/chantal/family"
)

type sourceConfigurer interface {
	withSource(baseURL string, client *http.Client) family.Family
}

var _ sourceConfigurer = (*Family)(nil)

func (f *Family) withSource(baseURL string, client *http.Client) family.Family {
	cp := *f
	cp.baseURL = baseURL
	cp.client = client
	return &cp
}

// FetchIndex prefers InRelease (inline-signed) and falls back to Release
// plus a separate VerifySignature check against Release.gpg. Either way it
// returns the plain Release stanza text: InRelease's clearsign wrapper is
// stripped here so Parse never needs to know which form was fetched.
func (f *Family) FetchIndex(ctx context.Context, prev family.Validator) ([]byte, family.Validator, error) {
	client := f.client
	if client == nil {
		client = http.DefaultClient
	}

	if raw, ok, err := f.get(ctx, client, "/dists/"+defaultSuite+"/InRelease", prev); err != nil {
		return nil, "", err
	} else if ok {
		if raw == nil {
			return nil, prev, nil
		}
		block, _ := clearsign.Decode(raw)
		if block == nil {
			return nil, "", &chantal.Error{Op: "deb.FetchIndex", Kind: chantal.ErrParse, Message: "InRelease is not clearsigned"}
		}
		return block.Plaintext, family.Validator(sum(raw)), nil
	}

	raw, _, err := f.get(ctx, client, "/dists/"+defaultSuite+"/Release", prev)
	if err != nil {
		return nil, "", err
	}
	if raw == nil {
		return nil, prev, nil
	}
	return raw, family.Validator(sum(raw)), nil
}

func (f *Family) get(ctx context.Context, client *http.Client, path string, prev family.Validator) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+path, nil)
	if err != nil {
		return nil, false, &chantal.Error{Op: "deb.FetchIndex", Kind: chantal.ErrConfig, Inner: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, false, &chantal.Error{Op: "deb.FetchIndex", Kind: chantal.ErrNetwork, Inner: err}
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusNotFound:
		return nil, false, nil
	case http.StatusNotModified:
		return nil, true, nil
	case http.StatusOK:
	default:
		return nil, false, &chantal.Error{Op: "deb.FetchIndex", Kind: chantal.ErrNetwork, Message: resp.Status}
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, &chantal.Error{Op: "deb.FetchIndex", Kind: chantal.ErrNetwork, Inner: err}
	}
	if family.Validator(sum(raw)) == prev {
		return nil, true, nil
	}
	return raw, true, nil
}

// VerifySignature checks raw (the plain Release stanza text recovered by
// FetchIndex) against Release.gpg, fetched separately since Parse/FetchIndex
// never see the detached-signature variant when InRelease was available.
func (f *Family) VerifySignature(ctx context.Context, raw []byte, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	client := f.client
	if client == nil {
		client = http.DefaultClient
	}
	sigRaw, ok, err := f.get(ctx, client, "/dists/"+defaultSuite+"/Release.gpg", "")
	if err != nil {
		return err
	}
	if !ok || sigRaw == nil {
		return &chantal.Error{Op: "deb.VerifySignature", Kind: chantal.ErrSignature, Message: "Release.gpg not available"}
	}

	var keyring openpgp.EntityList
	for _, k := range keys {
		block, err := armor.Decode(bytes.NewReader([]byte(k)))
		if err != nil {
			return &chantal.Error{Op: "deb.VerifySignature", Kind: chantal.ErrConfig, Inner: err}
		}
		ents, err := openpgp.ReadKeyRing(block.Body)
		if err != nil {
			return &chantal.Error{Op: "deb.VerifySignature", Kind: chantal.ErrConfig, Inner: err}
		}
		keyring = append(keyring, ents...)
	}

	if _, err := openpgp.CheckArmoredDetachedSignature(keyring, bytes.NewReader(raw), bytes.NewReader(sigRaw), nil); err != nil {
		return &chantal.Error{Op: "deb.VerifySignature", Kind: chantal.ErrSignature, Inner: err}
	}
	return nil
}

// sum is used only as an opaque change-detection token for family.Validator,
// not as a chantal.Digest, so a plain hex sha256 string (no FanOut/Scanner
// machinery) is all that's needed here.
func sum(raw []byte) string {
	h := sha256.Sum256(raw)
	return hex.EncodeToString(h[:])
}

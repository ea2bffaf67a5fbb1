package apk

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"io"
	"net/http"

	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/armor"

	"github.com/slauger/chantal"
	"github.com/slauger/chantal/family"
)

func decodeSig(encoded []byte) ([]byte, error) {
	return base64.StdEncoding.DecodeString(string(bytes.TrimSpace(encoded)))
}

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

// FetchIndex retrieves <baseURL>/APKINDEX.tar.gz. Alpine repositories
// publish one index per architecture and the Sync Engine binds one baseURL
// per repository, so a repository's URL names a single architecture
// directory; other architectures are not fetched.
func (f *Family) FetchIndex(ctx context.Context, prev family.Validator) ([]byte, family.Validator, error) {
	client := f.client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/APKINDEX.tar.gz", nil)
	if err != nil {
		return nil, "", &chantal.Error{Op: "apk.FetchIndex", Kind: chantal.ErrConfig, Inner: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", &chantal.Error{Op: "apk.FetchIndex", Kind: chantal.ErrNetwork, Inner: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", &chantal.Error{Op: "apk.FetchIndex", Kind: chantal.ErrNetwork, Message: resp.Status}
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &chantal.Error{Op: "apk.FetchIndex", Kind: chantal.ErrNetwork, Inner: err}
	}
	h := sha256.Sum256(raw)
	next := family.Validator(hex.EncodeToString(h[:]))
	if next == prev {
		return nil, prev, nil
	}
	return raw, next, nil
}

// VerifySignature checks the APKINDEX text inside raw (the APKINDEX.tar.gz
// bytes FetchIndex returned) against a detached signature fetched from
// <baseURL>/.SIGN.RSA.chantal.pub. A repository that ships no such file is
// rejected when keys is non-empty, matching RPM/DEB's treatment of an
// unsigned upstream under a configured keyring.
func (f *Family) VerifySignature(ctx context.Context, raw []byte, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	plain, err := extractIndex(raw)
	if err != nil {
		return err
	}
	client := f.client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/"+sigMemberName, nil)
	if err != nil {
		return &chantal.Error{Op: "apk.VerifySignature", Kind: chantal.ErrConfig, Inner: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return &chantal.Error{Op: "apk.VerifySignature", Kind: chantal.ErrNetwork, Inner: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &chantal.Error{Op: "apk.VerifySignature", Kind: chantal.ErrSignature, Message: "no detached signature available"}
	}
	encoded, err := io.ReadAll(resp.Body)
	if err != nil {
		return &chantal.Error{Op: "apk.VerifySignature", Kind: chantal.ErrNetwork, Inner: err}
	}
	sig, err := decodeSig(encoded)
	if err != nil {
		return &chantal.Error{Op: "apk.VerifySignature", Kind: chantal.ErrSignature, Inner: err}
	}

	var keyring openpgp.EntityList
	for _, k := range keys {
		block, err := armor.Decode(bytes.NewReader([]byte(k)))
		if err != nil {
			return &chantal.Error{Op: "apk.VerifySignature", Kind: chantal.ErrConfig, Inner: err}
		}
		ents, err := openpgp.ReadKeyRing(block.Body)
		if err != nil {
			return &chantal.Error{Op: "apk.VerifySignature", Kind: chantal.ErrConfig, Inner: err}
		}
		keyring = append(keyring, ents...)
	}

	if _, err := openpgp.CheckDetachedSignature(keyring, bytes.NewReader(plain), bytes.NewReader(sig), nil); err != nil {
		return &chantal.Error{Op: "apk.VerifySignature", Kind: chantal.ErrSignature, Inner: err}
	}
	return nil
}

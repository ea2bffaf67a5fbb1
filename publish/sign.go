package publish

import (
	"os"

	"github.com/slauger/chantal"
)

// LoadSigningKey reads PGP private key material (armored or raw keyring)
// from path for use as family.PublishOptions.SigningKey. Each family
// package parses and uses the key itself (rpm.signRepomd, deb's Release
// signer, apk's .SIGN.RSA signature file, helm's buildProvenance):
// chantal doesn't centralise key parsing because each family needs a
// slightly different openpgp entry point (ArmoredDetachSign, ClearSign, a
// raw detached signature in a separate file), and forcing a single shared
// signature type would just push the family-specific branching into this
// package instead of removing it.
func LoadSigningKey(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, &chantal.Error{Op: "publish.LoadSigningKey", Kind: chantal.ErrConfig, Inner: err}
	}
	return key, nil
}

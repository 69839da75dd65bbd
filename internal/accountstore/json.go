package accountstore

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/airbitz-style/walletcore/internal/walleterr"
)

type userNameDoc struct {
	UserName string `json:"userName"`
}

func encodeUserName(username string) ([]byte, error) {
	return json.MarshalIndent(userNameDoc{UserName: username}, "", "    ")
}

func decodeUserName(data []byte) (string, error) {
	var doc userNameDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", walleterr.Wrap(walleterr.KindJSON, "parse User_Name.json", err)
	}
	return doc.UserName, nil
}

type pinDoc struct {
	PIN string `json:"PIN"`
}

func encodePIN(pin string) ([]byte, error) {
	return json.MarshalIndent(pinDoc{PIN: pin}, "", "    ")
}

func decodePIN(data []byte) (string, error) {
	var doc pinDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", walleterr.Wrap(walleterr.KindJSON, "parse EPIN payload", err)
	}
	if doc.PIN == "" {
		return "", walleterr.New(walleterr.KindCorrupt, "EPIN payload missing PIN field")
	}
	return doc.PIN, nil
}

// writeFilePretty writes data to path, creating parent directories as
// needed, matching the "all JSON files are written pretty-printed" rule
// (spec.md §6).
func writeFilePretty(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return walleterr.Wrap(walleterr.KindIO, "create account directory", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return walleterr.Wrap(walleterr.KindIO, "write account file", err)
	}
	return nil
}

func readFileOrCorrupt(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, walleterr.Wrap(walleterr.KindIO, "account file missing", err)
		}
		return nil, walleterr.Wrap(walleterr.KindIO, "read account file", err)
	}
	return data, nil
}

var emptyListJSON = []byte("[]")

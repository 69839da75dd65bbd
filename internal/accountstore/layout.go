package accountstore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/airbitz-style/walletcore/internal/walleterr"
)

// maxAccounts bounds the local account-number space to [0, 1024) (spec.md
// §4.3).
const maxAccounts = 1024

// accountDir returns the directory for account number n, rooted at dataDir.
func accountDir(dataDir string, n int) string {
	return filepath.Join(dataDir, "Accounts", fmt.Sprintf("Account_%d", n))
}

func userNameFile(accountDir string) string    { return filepath.Join(accountDir, "User_Name.json") }
func carePackageFile(accountDir string) string { return filepath.Join(accountDir, "Care_Package.json") }
func epinFile(accountDir string) string        { return filepath.Join(accountDir, "EPIN.json") }
func elp2File(accountDir string) string        { return filepath.Join(accountDir, "sync", "ELP2.json") }
func elra2File(accountDir string) string       { return filepath.Join(accountDir, "sync", "ELRA2.json") }
func walletsFile(accountDir string) string     { return filepath.Join(accountDir, "sync", "Wallets.json") }
func categoriesFile(accountDir string) string  { return filepath.Join(accountDir, "sync", "Categories.json") }

// findUserDir scans Account_0..Account_1023 for the lowest-numbered
// directory whose User_Name.json matches username. Returns -1 when none
// matches (spec.md §4.3 num_for_user).
func findUserDir(dataDir, username string) (int, error) {
	for n := 0; n < maxAccounts; n++ {
		dir := accountDir(dataDir, n)
		data, err := os.ReadFile(userNameFile(dir))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return -1, walleterr.Wrap(walleterr.KindIO, "read User_Name.json", err)
		}
		name, err := decodeUserName(data)
		if err != nil {
			continue
		}
		if name == username {
			return n, nil
		}
	}
	return -1, nil
}

// firstFreeAccountNum finds the smallest unused account number, or fails
// with NoAvailAccountSpace once all 1024 slots are taken (spec.md §4.3).
func firstFreeAccountNum(dataDir string) (int, error) {
	for n := 0; n < maxAccounts; n++ {
		if _, err := os.Stat(accountDir(dataDir, n)); os.IsNotExist(err) {
			return n, nil
		}
	}
	return -1, walleterr.New(walleterr.KindNoAvailAccountSpace, "no available account slots")
}

func readUserName(accountDir string) (string, error) {
	data, err := os.ReadFile(userNameFile(accountDir))
	if err != nil {
		return "", walleterr.Wrap(walleterr.KindIO, "read User_Name.json", err)
	}
	return decodeUserName(data)
}

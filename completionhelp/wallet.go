// Package completionhelp has the shell completion helpers of the CLI flags.
package completionhelp

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

const walletExt = ".bolt"

// WalletNames returns the names of the bolt wallets in the directory.
func WalletNames(dir string) (names []string) {
	defer err2.Catch(err2.Err(func(err error) {
		_, _ = fmt.Fprintln(os.Stderr, err)
	}))

	files := try.To1(filepath.Glob(filepath.Join(dir, "*"+walletExt)))
	names = make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, strings.TrimSuffix(filepath.Base(f), walletExt))
	}
	sort.Strings(names)
	return names
}

package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/cuemby/osbench/pkg/types"
)

// LoadUsers reads a credentials file. Normal mode expects three-column lines
// `username,ak,sk`; temporary mode five columns `username,ak,sk,token,
// original_ak`. Comment lines start with `#`, blank lines are skipped, and
// at most limit users are loaded.
func LoadUsers(path string, limit int, temporary bool) ([]types.UserCredential, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open users file %s: %w", path, err)
	}
	defer f.Close()

	if limit <= 0 {
		limit = 1
	}

	want := 3
	if temporary {
		want = 5
	}

	var users []types.UserCredential
	sc := bufio.NewScanner(f)
	for sc.Scan() && len(users) < limit {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) < want {
			continue
		}
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		u := types.UserCredential{
			Username: fields[0],
			AK:       fields[1],
			SK:       fields[2],
		}
		if temporary {
			u.Token = fields[3]
			u.OriginalAK = fields[4]
		} else {
			u.OriginalAK = u.AK
		}
		if u.Username == "" || u.AK == "" || u.SK == "" {
			continue
		}
		users = append(users, u)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read users file: %w", err)
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("no usable credentials in %s", path)
	}
	return users, nil
}

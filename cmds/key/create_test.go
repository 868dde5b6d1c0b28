package key

import (
	"bytes"
	"strings"
	"testing"

	"github.com/findy-network/findy-cxs/cmds"
	"github.com/stretchr/testify/assert"
)

func TestCreateCmd_Exec(t *testing.T) {
	cmd := CreateCmd{Seed: "00000000000000000000thisisa_test"}
	err := cmd.Validate()
	assert.NoError(t, err)

	var out bytes.Buffer
	_, err = cmd.Exec(&out)
	assert.NoError(t, err)
	key := strings.TrimSpace(out.String())
	assert.NoError(t, cmds.ValidateKey(key))

	out.Reset()
	_, err = cmd.Exec(&out)
	assert.NoError(t, err)
	assert.Equal(t, key, strings.TrimSpace(out.String()))
}

func TestCreateCmd_Random(t *testing.T) {
	cmd := CreateCmd{}
	assert.NoError(t, cmd.Validate())

	var out bytes.Buffer
	_, err := cmd.Exec(&out)
	assert.NoError(t, err)
	assert.NoError(t, cmds.ValidateKey(strings.TrimSpace(out.String())))
}

func TestCreateCmd_Validate(t *testing.T) {
	cmd := CreateCmd{Seed: "too short"}
	assert.Error(t, cmd.Validate())
}

func TestCheckCmd(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"not base58", "0OIl"},
		{"short", "3mJr7AoUXx2Wqd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := CheckCmd{Key: tt.key}
			assert.Error(t, cmd.Validate())
		})
	}

	var out bytes.Buffer
	create := CreateCmd{}
	_, err := create.Exec(&out)
	assert.NoError(t, err)

	check := CheckCmd{Key: strings.TrimSpace(out.String())}
	out.Reset()
	_, err = check.Exec(&out)
	assert.NoError(t, err)
	assert.Equal(t, "key OK\n", out.String())
}

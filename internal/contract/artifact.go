package contract

import (
	"io/ioutil"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/tidwall/gjson"
	"moff.io/wemove/pkg/errors"
)

// LoadArtifact reads a compiled contract artifact from path.
func LoadArtifact(path string) (abi.ABI, error) {
	dat, err := ioutil.ReadFile(path)
	if err != nil {
		return abi.ABI{}, errors.Wrapf(err, "read abi artifact %s", path)
	}
	return ParseArtifact(dat)
}

// ParseArtifact accepts a hardhat/truffle artifact with an "abi" field or a bare ABI array.
func ParseArtifact(dat []byte) (abi.ABI, error) {
	if !gjson.ValidBytes(dat) {
		return abi.ABI{}, errors.New("abi artifact is not valid json")
	}
	doc := gjson.ParseBytes(dat)
	raw := doc.Raw
	if doc.IsObject() {
		field := doc.Get("abi")
		if !field.IsArray() {
			return abi.ABI{}, errors.New("abi artifact has no abi array")
		}
		raw = field.Raw
	}
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		return abi.ABI{}, errors.Wrap(err, "parse abi")
	}
	return parsed, nil
}

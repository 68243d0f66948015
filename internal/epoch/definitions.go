package epoch

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"OpenAttest-Chain/internal/claim"
	xerrors "OpenAttest-Chain/internal/errors"
)

// Definitions models the structure of configs/witnesses.yaml, the bootstrap
// witness set used to seed the first epoch of a fresh deployment.
type Definitions struct {
	RequiredSignatures int                 `yaml:"required_signatures"`
	Witnesses          []WitnessDefinition `yaml:"witnesses"`
}

// WitnessDefinition describes a single authorized witness endpoint.
type WitnessDefinition struct {
	Address string `yaml:"address"`
	Host    string `yaml:"host"`
}

// LoadDefinitions parses the YAML file containing witness metadata.
func LoadDefinitions(path string) (Definitions, error) {
	if strings.TrimSpace(path) == "" {
		return Definitions{}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Definitions{}, fmt.Errorf("读取见证配置失败: %w", err)
	}

	var defs Definitions
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return Definitions{}, fmt.Errorf("解析见证配置失败: %w", err)
	}
	return defs, nil
}

// Materialize 把定义转换为校验过的见证列表与签名阈值。
func (d Definitions) Materialize() ([]claim.Witness, int, error) {
	witnesses := make([]claim.Witness, 0, len(d.Witnesses))
	for _, def := range d.Witnesses {
		address := strings.TrimSpace(def.Address)
		if !common.IsHexAddress(address) {
			return nil, 0, xerrors.New(xerrors.CodeInvalidArgument, "见证地址非法: "+def.Address)
		}
		witnesses = append(witnesses, claim.Witness{
			Address: common.HexToAddress(address),
			Host:    strings.TrimSpace(def.Host),
		})
	}
	required := d.RequiredSignatures
	if required <= 0 {
		required = len(witnesses)
	}
	return witnesses, required, nil
}

package v1

import (
	"fmt"
	"strconv"

	"energylogger/pkg/runtime/constant"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/sets"
)

// MaxReadCount is the largest register block one read may request.
const MaxReadCount = 125

type RegisterGroup struct {
	Name   string              `json:"name"`
	Start  uint16              `json:"start"`
	Count  uint16              `json:"count"`
	Decode constant.DecodeType `json:"decode"`
}

// RegisterMap is the ordered list of measurements of one device type.
type RegisterMap struct {
	Groups []RegisterGroup `json:"groups"`
	// Warnings lists groups whose count does not fit their decode type.
	// Such groups load, and fail to decode on every read.
	Warnings []string `json:"warnings,omitempty"`
}

// ParseRegisterMap decodes `name: [start, count, decode]` entries keeping the
// order they are written in.
func ParseRegisterMap(data []byte) (*RegisterMap, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	rm := &RegisterMap{}
	if len(doc.Content) == 0 {
		return rm, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: register map must be a mapping", root.Line)
	}

	names := sets.New[string]()
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		if names.Has(key.Value) {
			return nil, fmt.Errorf("line %d: duplicate measurement %q", key.Line, key.Value)
		}
		names.Insert(key.Value)

		rg, err := parseRegisterGroup(key.Value, value)
		if err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", value.Line, key.Value, err)
		}
		if err := checkWidth(rg); err != "" {
			rm.Warnings = append(rm.Warnings, key.Value+": "+err)
		}
		rm.Groups = append(rm.Groups, rg)
	}
	return rm, nil
}

func parseRegisterGroup(name string, node *yaml.Node) (RegisterGroup, error) {
	rg := RegisterGroup{Name: name}
	if node.Kind != yaml.SequenceNode || len(node.Content) != 3 {
		return rg, fmt.Errorf("want [start, count, decode]")
	}

	start, err := strconv.ParseUint(node.Content[0].Value, 0, 16)
	if err != nil {
		return rg, fmt.Errorf("invalid start address %q", node.Content[0].Value)
	}
	count, err := strconv.ParseUint(node.Content[1].Value, 0, 16)
	if err != nil || count == 0 || count > MaxReadCount {
		return rg, fmt.Errorf("invalid register count %q", node.Content[1].Value)
	}
	if start+count > 1<<16 {
		return rg, fmt.Errorf("register block %d+%d out of range", start, count)
	}
	dt, err := constant.ParseDecodeType(node.Content[2].Value)
	if err != nil {
		return rg, err
	}

	rg.Start = uint16(start)
	rg.Count = uint16(count)
	rg.Decode = dt
	return rg, nil
}

func checkWidth(rg RegisterGroup) string {
	want, ok := constant.DecodeTypeWord[rg.Decode]
	if !ok || int(rg.Count) == want {
		return ""
	}
	return fmt.Sprintf("%s needs %d registers, map declares %d", rg.Decode, want, rg.Count)
}

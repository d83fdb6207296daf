package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/cbergoon/merkletree"

	"github.com/tayjaybabee/jet-bridge/internal/alerr"
)

// Fingerprint is the merkle hash of a model, used to tell whether a
// re-reflection changed anything.
type Fingerprint struct {
	Root   string            `json:"root"`
	Tables map[string]string `json:"tables"`
}

// tableContent implements merkletree.Content for table-level hashing.
type tableContent struct {
	name string
	hash string
}

func (t tableContent) CalculateHash() ([]byte, error) {
	h := sha256.Sum256([]byte(t.name + ":" + t.hash))
	return h[:], nil
}

func (t tableContent) Equals(other merkletree.Content) (bool, error) {
	o, ok := other.(tableContent)
	if !ok {
		return false, nil
	}
	return t.name == o.name && t.hash == o.hash, nil
}

// Fingerprint hashes every table descriptor and builds a merkle tree over
// them in name order.
func (m *Model) Fingerprint() (*Fingerprint, error) {
	result := &Fingerprint{Tables: make(map[string]string)}

	names := m.Names()
	sort.Strings(names)
	if len(names) == 0 {
		result.Root = emptyHash()
		return result, nil
	}

	contents := make([]merkletree.Content, 0, len(names))
	for _, name := range names {
		t, _ := m.Get(name)
		h, err := hashTable(t)
		if err != nil {
			return nil, err
		}
		result.Tables[name] = h
		contents = append(contents, tableContent{name: name, hash: h})
	}

	tree, err := merkletree.NewTree(contents)
	if err != nil {
		return nil, alerr.Wrap(alerr.EInternalError, err, "failed to build merkle tree")
	}
	result.Root = hex.EncodeToString(tree.MerkleRoot())
	return result, nil
}

// hashTable hashes the JSON form of a table. encoding/json sorts map keys,
// so equal descriptors hash equally.
func hashTable(t *Table) (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", alerr.Wrap(alerr.EInternalError, err, "failed to encode table for hashing").
			WithTable(t.Model)
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:]), nil
}

func emptyHash() string {
	h := sha256.Sum256(nil)
	return hex.EncodeToString(h[:])
}

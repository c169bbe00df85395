package corks

import (
	"crypto/ecdsa"
	"os"
	"path/filepath"

	"github.com/smartcontractkit/corks"
	"github.com/smartcontractkit/corks/config"
)

func loadPrivateKey(envFile string) (*ecdsa.PrivateKey, error) {
	secrets, err := config.LoadSecrets(envFile)
	if err != nil {
		return nil, err
	}

	return secrets.RequirePrivateKey()
}

func writeProposal(path string, proposal *corks.CorkProposal) error {
	file, err := os.Create(filepath.Clean(path))
	if err != nil {
		return err
	}
	defer file.Close()

	return proposal.Write(file)
}

func signProposal(path string, signer corks.Signer) error {
	proposal, err := corks.LoadProposal(path)
	if err != nil {
		return err
	}

	if err := corks.Sign(proposal, signer); err != nil {
		return err
	}

	return writeProposal(path, proposal)
}

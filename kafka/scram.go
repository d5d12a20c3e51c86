package kafka

import (
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	"github.com/xdg-go/scram"
)

var (
	sha256Fn scram.HashGeneratorFcn = func() hash.Hash { return sha256.New() }
	sha512Fn scram.HashGeneratorFcn = func() hash.Hash { return sha512.New() }
)

// scramClient 实现 sarama.SCRAMClient
type scramClient struct {
	*scram.Client
	*scram.ClientConversation
	hashFn scram.HashGeneratorFcn
}

func (c *scramClient) Begin(userName, password, authzID string) (err error) {
	c.Client, err = c.hashFn.NewClient(userName, password, authzID)
	if err != nil {
		return err
	}
	c.ClientConversation = c.Client.NewConversation()
	return nil
}

func (c *scramClient) Step(challenge string) (string, error) {
	return c.ClientConversation.Step(challenge)
}

func (c *scramClient) Done() bool {
	return c.ClientConversation.Done()
}

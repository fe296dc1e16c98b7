// Package mocks provides a mock implementation of the cipher primitives for testing.
package mocks

import (
	"github.com/stretchr/testify/mock"
)

// MockPrimitives is a mock implementation of Primitives.
type MockPrimitives struct {
	mock.Mock
}

func (m *MockPrimitives) GenerateKey() ([]byte, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockPrimitives) GenerateNonce() ([]byte, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockPrimitives) Encrypt(key, nonce, plaintext []byte) ([]byte, []byte, error) {
	args := m.Called(key, nonce, plaintext)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).([]byte), args.Get(1).([]byte), args.Error(2)
}

func (m *MockPrimitives) Decrypt(key, nonce, ciphertext, tag []byte) ([]byte, error) {
	args := m.Called(key, nonce, ciphertext, tag)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockPrimitives) SHA256(data []byte) string {
	args := m.Called(data)
	return args.String(0)
}

func (m *MockPrimitives) DeriveHMACKey(key []byte) []byte {
	args := m.Called(key)
	return args.Get(0).([]byte)
}

func (m *MockPrimitives) HMACSHA256(key, data []byte) []byte {
	args := m.Called(key, data)
	return args.Get(0).([]byte)
}

func (m *MockPrimitives) ConstantTimeEquals(a, b []byte) bool {
	args := m.Called(a, b)
	return args.Bool(0)
}

package signing_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/block-0x/signet/internal/signing"
	"github.com/block-0x/signet/pkg/sign"
	"github.com/block-0x/signet/pkg/wallet"
)

const (
	testPrivKey  = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	testAddress  = "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"
	otherPrivKey = "0x8f2a55949038a9610f50fb23b5883af3b4ecb3c3bb792cbcefbd1542c692be63"
)

func setupProvider(t *testing.T, opts ...wallet.LocalOption) *wallet.Provider {
	t.Helper()
	s1, err := sign.NewEthereumSigner(testPrivKey)
	require.NoError(t, err)
	s2, err := sign.NewEthereumSigner(otherPrivKey)
	require.NoError(t, err)

	w, err := wallet.NewLocalWallet(1, []*sign.EthereumSigner{s1, s2}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return wallet.NewProvider("local", w)
}

func TestSignThenVerify(t *testing.T) {
	ctx := context.Background()
	p := setupProvider(t)

	pending, err := signing.Sign(ctx, p, "hello", testAddress)
	require.NoError(t, err)
	assert.Equal(t, "hello", pending.Message)
	assert.False(t, pending.IsZero())

	t.Run("honest pair verifies", func(t *testing.T) {
		v, err := signing.Verify(ctx, p, pending.Message, pending.Signature, testAddress)
		require.NoError(t, err)
		assert.Equal(t, signing.Verified, v)
	})

	t.Run("claimed account case is ignored", func(t *testing.T) {
		v, err := signing.Verify(ctx, p, pending.Message, pending.Signature, strings.ToLower(testAddress))
		require.NoError(t, err)
		assert.Equal(t, signing.Verified, v)
	})

	t.Run("altered message is denied", func(t *testing.T) {
		v, err := signing.Verify(ctx, p, "hello!", pending.Signature, testAddress)
		require.NoError(t, err)
		assert.Equal(t, signing.Denied, v)
	})

	t.Run("altered signature is denied", func(t *testing.T) {
		other, err := signing.Sign(ctx, p, "something else", testAddress)
		require.NoError(t, err)

		v, err := signing.Verify(ctx, p, pending.Message, other.Signature, testAddress)
		require.NoError(t, err)
		assert.Equal(t, signing.Denied, v)
	})

	t.Run("altered account is denied", func(t *testing.T) {
		accounts, err := p.RequestAccounts(ctx)
		require.NoError(t, err)

		v, err := signing.Verify(ctx, p, pending.Message, pending.Signature, accounts[1])
		require.NoError(t, err)
		assert.Equal(t, signing.Denied, v)
	})

	t.Run("malformed signature is a verification error", func(t *testing.T) {
		v, err := signing.Verify(ctx, p, pending.Message, pending.Signature[:10], testAddress)
		assert.ErrorIs(t, err, signing.ErrVerification)
		assert.True(t, wallet.IsCode(err, wallet.CodeInvalidParams))
		assert.Equal(t, signing.Unknown, v)
	})
}

func TestSign_Rejected(t *testing.T) {
	p := setupProvider(t, wallet.WithApprover(wallet.RejectAll))

	pending, err := signing.Sign(context.Background(), p, "hello", testAddress)
	assert.ErrorIs(t, err, signing.ErrSigning)
	assert.True(t, wallet.IsCode(err, wallet.CodeUserRejected))
	assert.True(t, pending.IsZero())
	assert.Empty(t, pending.Message)
}

func TestVerification_String(t *testing.T) {
	assert.Equal(t, "unknown", signing.Unknown.String())
	assert.Equal(t, "verified", signing.Verified.String())
	assert.Equal(t, "denied", signing.Denied.String())
}

func TestVerification_Text(t *testing.T) {
	for _, v := range []signing.Verification{signing.Unknown, signing.Verified, signing.Denied} {
		text, err := v.MarshalText()
		require.NoError(t, err)

		var back signing.Verification
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, v, back)
	}

	var v signing.Verification
	assert.Error(t, v.UnmarshalText([]byte("maybe")))
}

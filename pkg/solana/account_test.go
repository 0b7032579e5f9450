package solana

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountInfo_Borrow(t *testing.T) {
	a := &AccountInfo{Data: []byte{1, 2, 3}}

	data, release, err := a.Borrow()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)

	_, release2, err := a.Borrow()
	require.NoError(t, err)

	_, _, err = a.BorrowMut()
	assert.Equal(t, InstructionErrorAccountBorrowFailed, ErrorKey(err))

	release()
	release() // releasing twice is a no-op
	assert.True(t, a.IsBorrowed())
	release2()
	assert.False(t, a.IsBorrowed())

	_, releaseMut, err := a.BorrowMut()
	require.NoError(t, err)
	_, _, err = a.Borrow()
	assert.Equal(t, InstructionErrorAccountBorrowFailed, ErrorKey(err))
	releaseMut()

	_, release, err = a.Borrow()
	require.NoError(t, err)
	release()
}

func TestAccountInfo_Clone(t *testing.T) {
	a := &AccountInfo{
		Key:      make([]byte, 32),
		Owner:    make([]byte, 32),
		Lamports: 10,
		Data:     []byte{1},
		IsSigner: true,
	}

	_, release, err := a.Borrow()
	require.NoError(t, err)
	defer release()

	c := a.Clone()
	assert.False(t, c.IsBorrowed())
	assert.Equal(t, a.Lamports, c.Lamports)
	assert.True(t, c.IsSigner)

	c.Data[0] = 2
	assert.EqualValues(t, 1, a.Data[0])
	assert.True(t, c.IsOwnedBy(a.Owner))
}

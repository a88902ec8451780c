package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fnmodels/internal/checksum"
	"github.com/roach88/fnmodels/internal/command"
	"github.com/roach88/fnmodels/internal/guest"
)

func setup(t *testing.T, policy Policy) (*guest.Space, *Local) {
	t.Helper()
	s := guest.NewSpace()
	l := NewLocal(s)
	l.Handle(command.Channel, NewExecutor(s, policy, nil))
	return s, l
}

func str(t *testing.T, s *guest.Space, v string, width int) uint64 {
	t.Helper()
	addr, err := s.AllocString(v, width)
	require.NoError(t, err)
	return addr
}

func roundTrip(t *testing.T, l *Local, c command.Command) command.Command {
	t.Helper()
	c.Defer = true
	msg := c.Encode()
	require.NoError(t, l.Invoke(command.Channel, msg))
	command.ReadVerdict(msg, &c)
	return c
}

func TestExecutor_Strcpy(t *testing.T) {
	for _, width := range []int{1, 4} {
		s, l := setup(t, HandleAll())
		src := str(t, s, "abc", width)
		dst := s.Alloc(8 * uint64(width))
		require.NoError(t, s.Fill(dst, width, 'A', 8))

		got := roundTrip(t, l, command.Command{Op: command.OpStrcpy, First: dst, Second: src, CharSize: uint32(width)})
		assert.False(t, got.Defer)

		v, err := s.String(dst, width)
		require.NoError(t, err)
		assert.Equal(t, "abc", v)
		u, err := s.Unit(dst+4*uint64(width), width)
		require.NoError(t, err)
		assert.Equal(t, uint32('A'), u, "bytes past the terminator are untouched")
	}
}

func TestExecutor_StrncpyPads(t *testing.T) {
	s, l := setup(t, HandleAll())
	src := str(t, s, "ab", 1)
	dst := s.Alloc(8)
	require.NoError(t, s.Fill(dst, 1, 'A', 8))

	roundTrip(t, l, command.Command{Op: command.OpStrncpy, First: dst, Second: src, Count: 5, CharSize: 1})
	raw, err := s.Read(dst, 8)
	require.NoError(t, err)
	assert.Equal(t, []byte("ab\x00\x00\x00AAA"), raw)
}

func TestExecutor_StrlenAndCompare(t *testing.T) {
	s, l := setup(t, HandleAll())
	abc := str(t, s, "abc", 1)
	num := str(t, s, "123", 1)

	got := roundTrip(t, l, command.Command{Op: command.OpStrlen, First: abc, CharSize: 1})
	assert.Equal(t, uint64(3), got.Result)

	got = roundTrip(t, l, command.Command{Op: command.OpStrcmp, First: num, Second: abc, CharSize: 1})
	assert.Equal(t, int32(-1), got.Int32())

	got = roundTrip(t, l, command.Command{Op: command.OpStrncmp, First: abc, Second: num, Count: 4, CharSize: 1})
	assert.Equal(t, int32(1), got.Int32())

	got = roundTrip(t, l, command.Command{Op: command.OpMemcmp, First: abc, Second: abc, Count: 3})
	assert.Equal(t, int32(0), got.Int32())
	assert.False(t, got.Defer)
}

func TestExecutor_Concatenate(t *testing.T) {
	s, l := setup(t, HandleAll())
	src := str(t, s, "abc", 1)
	dst := s.Alloc(8)
	require.NoError(t, s.Fill(dst, 1, 'A', 8))
	require.NoError(t, s.WriteString(dst, "ABCD", 1))

	roundTrip(t, l, command.Command{Op: command.OpStrncat, First: dst, Second: src, Count: 2, CharSize: 1})
	raw, err := s.Read(dst, 8)
	require.NoError(t, err)
	assert.Equal(t, []byte("ABCDab\x00A"), raw)

	require.NoError(t, s.WriteString(dst, "ABCD", 1))
	roundTrip(t, l, command.Command{Op: command.OpStrcat, First: dst, Second: src, CharSize: 1})
	raw, err = s.Read(dst, 8)
	require.NoError(t, err)
	assert.Equal(t, []byte("ABCDabc\x00"), raw)
}

func TestExecutor_Checksum(t *testing.T) {
	s, l := setup(t, HandleAll())
	buf := str(t, s, "test", 1)

	seed32 := s.Spill(0, 4)
	got := roundTrip(t, l, command.Command{Op: command.OpCrc, First: seed32.Slot, Second: buf, Count: 4, CRC: checksum.CRC32, Finalize: true})
	assert.Equal(t, uint64(0xd87f7e0c), got.Result)

	seed16 := s.Spill(0, 2)
	got = roundTrip(t, l, command.Command{Op: command.OpCrc, First: seed16.Slot, Second: buf, Count: 4, CRC: checksum.CRC16})
	assert.Equal(t, uint64(0xdc2e), got.Result)
}

func TestExecutor_Memcpy(t *testing.T) {
	s, l := setup(t, HandleAll())
	src := str(t, s, "abc", 1)
	require.NoError(t, s.MakeSymbolic(src, 3, "src"))
	dst := s.Alloc(8)

	roundTrip(t, l, command.Command{Op: command.OpMemcpy, First: dst, Second: src, Count: 3})
	assert.True(t, s.IsSymbolic(dst, 3), "symbolic bytes travel with the copy")
}

func TestExecutor_PolicyDefers(t *testing.T) {
	s, l := setup(t, DeferOps(command.OpStrlen))
	abc := str(t, s, "abc", 1)

	got := roundTrip(t, l, command.Command{Op: command.OpStrlen, First: abc, CharSize: 1})
	assert.True(t, got.Defer)
	assert.Zero(t, got.Result)

	got = roundTrip(t, l, command.Command{Op: command.OpStrcmp, First: abc, Second: abc, CharSize: 1})
	assert.False(t, got.Defer)

	_, l = setup(t, DeferAll())
	got = roundTrip(t, l, command.Command{Op: command.OpStrcmp, First: abc, Second: abc, CharSize: 1})
	assert.True(t, got.Defer)
}

func TestExecutor_FaultLeavesMessageUntouched(t *testing.T) {
	s, l := setup(t, HandleAll())
	src := str(t, s, "abc", 1)

	c := command.Command{Op: command.OpStrcpy, First: 0x10, Second: src, CharSize: 1, Defer: true}
	msg := c.Encode()
	err := l.Invoke(command.Channel, msg)
	require.Error(t, err)
	assert.True(t, IsFault(err))
	assert.Equal(t, c.Encode(), msg)
}

func TestExecutor_BadMessage(t *testing.T) {
	_, l := setup(t, HandleAll())
	err := l.Invoke(command.Channel, make([]byte, 3))
	require.Error(t, err)
	assert.ErrorIs(t, err, command.ErrShortMessage)
}

func TestExecutor_ResultSymbolic(t *testing.T) {
	s, l := setup(t, HandleAll())
	a := str(t, s, "abc", 1)
	b := str(t, s, "abd", 1)

	c := command.Command{Op: command.OpMemcmp, First: a, Second: b, Count: 3, Defer: true}
	msg := c.Encode()
	require.NoError(t, l.Invoke(command.Channel, msg))
	assert.False(t, l.ResultSymbolic(command.Channel, msg))

	require.NoError(t, s.MakeSymbolic(b+2, 1, "b"))
	assert.True(t, l.ResultSymbolic(command.Channel, msg))
	assert.False(t, l.ResultSymbolic("other", msg))

	pending := c.Encode()
	assert.False(t, l.ResultSymbolic(command.Channel, pending), "deferred commands carry no result")
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("", nil)
	require.NoError(t, err)
	assert.True(t, p.Handles(command.Command{Op: command.OpCrc}))

	p, err = ParsePolicy("defer-all", nil)
	require.NoError(t, err)
	assert.False(t, p.Handles(command.Command{Op: command.OpCrc}))

	p, err = ParsePolicy("defer-ops", []string{"crc", "memcpy"})
	require.NoError(t, err)
	assert.False(t, p.Handles(command.Command{Op: command.OpCrc}))
	assert.True(t, p.Handles(command.Command{Op: command.OpStrlen}))

	_, err = ParsePolicy("defer-ops", []string{"strtok"})
	assert.ErrorIs(t, err, command.ErrUnknownOp)

	_, err = ParsePolicy("sometimes", nil)
	assert.Error(t, err)
}

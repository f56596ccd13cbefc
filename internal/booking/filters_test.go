package booking

import (
	"testing"

	"github.com/johnmichaeldizon211/apatech-sub001/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(bs []models.Booking) []string {
	out := make([]string, 0, len(bs))
	for _, b := range bs {
		out = append(out, b.OrderID)
	}
	return out
}

func fixture() []models.Booking {
	return []models.Booking{
		{OrderID: "p1", UserEmail: "ann@x.io", Status: "Pending"},
		{OrderID: "a1", UserEmail: "ann@x.io", Status: "Approved"},
		{OrderID: "r1", UserEmail: "ann@x.io", Status: "Rejected"},
		{OrderID: "c1", UserEmail: "bob@x.io", Status: "Cancelled"},
		{OrderID: "d1", UserEmail: "bob@x.io", Status: "Approved", FulfillmentStatus: "Delivered"},
		{OrderID: "u1", Status: "Pending"},
	}
}

func TestUserActive(t *testing.T) {
	assert.Equal(t, []string{"p1", "a1"}, ids(UserActive(fixture(), "ANN@x.io")))
	assert.Equal(t, []string{"d1"}, ids(UserActive(fixture(), "bob@x.io")))
	// without a current user only unscoped bookings show
	assert.Equal(t, []string{"u1"}, ids(UserActive(fixture(), "")))
}

func TestUserPending(t *testing.T) {
	assert.Equal(t, []string{"p1"}, ids(UserPending(fixture(), "ann@x.io")))
}

func TestAdminFilters(t *testing.T) {
	assert.Equal(t, []string{"p1", "u1"}, ids(AdminPending(fixture())))
	assert.Len(t, AdminAll(fixture()), 6)
	assert.Equal(t, []string{"p1", "a1", "d1", "u1"}, ids(Schedulable(fixture())))
	assert.Equal(t, []string{"c1", "d1"}, ids(OfUser(fixture(), "bob@x.io")))
}

func TestFilters_DoNotMutateInput(t *testing.T) {
	in := fixture()
	out := AdminAll(in)
	require.Len(t, out, len(in))
	out[0].Status = "Rejected"
	assert.Equal(t, "Pending", in[0].Status)
}

func TestAdminPending_EmptyInput(t *testing.T) {
	assert.Empty(t, AdminPending(nil))
}

package payment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewMerchantOrderID builds b-<bookingId|new>-<full|partial|ext>-<unixMillis>.
// Orders that do not reference a booking yet get a random suffix since
// nothing else keeps two users apart.
func NewMerchantOrderID(bookingID int64, kind string, now time.Time) string {
	if bookingID > 0 {
		return fmt.Sprintf("b-%d-%s-%d", bookingID, kind, now.UnixMilli())
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("b-new-%s-%d-%s", kind, now.UnixMilli(), suffix)
}

func NewMerchantRefundID() string {
	return "r-" + uuid.NewString()
}

const (
	orderKindFull      = "full"
	orderKindPartial   = "partial"
	orderKindExtension = "ext"
)

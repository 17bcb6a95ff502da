package repositories

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"

	"github.com/parkhaus/parkhaus-backend/models"
)

// EntryLedgerRepository queries the gate hardware operator's own entry log.
// It is the fallback source of an entry timestamp when a vehicle reaches the
// exit without a stored session (camera miss at the entry gate).
type EntryLedgerRepository struct {
	client  *http.Client
	baseUrl string
	apiKey  string
}

func NewEntryLedgerRepository(client *http.Client, baseUrl, apiKey string) EntryLedgerRepository {
	return EntryLedgerRepository{
		client:  client,
		baseUrl: baseUrl,
		apiKey:  apiKey,
	}
}

// GetEntryTime returns the recorded entry time of the plate at the lot, or a
// NotFoundError when the operator has no record either.
func (repo EntryLedgerRepository) GetEntryTime(ctx context.Context, lotId, plate string) (time.Time, error) {
	body, err := retry.DoWithData(func() ([]byte, error) {
		endpoint := fmt.Sprintf("%s/v1/lots/%s/entries/%s",
			repo.baseUrl, url.PathEscape(lotId), url.PathEscape(plate))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, retry.Unrecoverable(err)
		}
		req.Header.Set("Authorization", "Bearer "+repo.apiKey)

		resp, err := repo.client.Do(req)
		if err != nil {
			return nil, errors.Wrap(err, "entry ledger request failed")
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, retry.Unrecoverable(errors.Wrapf(models.NotFoundError,
				"no entry record for plate %s at lot %s", plate, lotId))
		case resp.StatusCode >= http.StatusInternalServerError:
			return nil, errors.Wrap(models.ServiceUnavailableError,
				fmt.Sprintf("entry ledger returned status %d", resp.StatusCode))
		case resp.StatusCode != http.StatusOK:
			return nil, retry.Unrecoverable(errors.Newf(
				"entry ledger returned status %d", resp.StatusCode))
		}
		return io.ReadAll(resp.Body)
	},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return time.Time{}, err
	}

	entryTime, err := time.Parse(time.RFC3339, gjson.GetBytes(body, "entry_time").String())
	if err != nil {
		return time.Time{}, errors.Wrap(err, "can't parse entry ledger timestamp")
	}
	return entryTime, nil
}

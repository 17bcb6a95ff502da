package repositories

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/avast/retry-go/v4"
	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"

	"github.com/parkhaus/parkhaus-backend/models"
)

// CardVerifier looks a payment up at the card processor. Card settlements
// are fiat-denominated: the amount is in minor units of the processor's
// currency and no crypto asset is attached.
type CardVerifier struct {
	client  *http.Client
	baseUrl string
	apiKey  string
}

func NewCardVerifier(client *http.Client, baseUrl, apiKey string) CardVerifier {
	return CardVerifier{
		client:  client,
		baseUrl: baseUrl,
		apiKey:  apiKey,
	}
}

func (v CardVerifier) Rail() models.Rail {
	return models.RailCard
}

func (v CardVerifier) VerifySettlement(ctx context.Context, reference string) (models.SettlementResult, error) {
	body, err := retry.DoWithData(func() ([]byte, error) {
		endpoint := fmt.Sprintf("%s/v1/payments/%s", v.baseUrl, url.PathEscape(reference))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, retry.Unrecoverable(err)
		}
		req.Header.Set("Authorization", "Bearer "+v.apiKey)

		resp, err := v.client.Do(req)
		if err != nil {
			return nil, errors.Wrap(err, "card processor request failed")
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, retry.Unrecoverable(errors.Wrapf(models.NotFoundError,
				"payment %s not found at the card processor", reference))
		case resp.StatusCode >= http.StatusInternalServerError:
			return nil, errors.Wrap(models.ServiceUnavailableError,
				fmt.Sprintf("card processor returned status %d", resp.StatusCode))
		case resp.StatusCode != http.StatusOK:
			return nil, retry.Unrecoverable(errors.Newf(
				"card processor returned status %d", resp.StatusCode))
		}
		return io.ReadAll(resp.Body)
	},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return models.SettlementResult{}, err
	}

	payment := gjson.ParseBytes(body)
	switch payment.Get("status").String() {
	case "succeeded":
		// fall through to the settlement facts
	case "pending", "processing":
		return models.SettlementResult{}, errors.WithStack(models.ErrSettlementNotFinal)
	default:
		return models.SettlementResult{}, errors.Wrapf(models.BadParameterError,
			"payment %s did not succeed (%s)", reference, payment.Get("status").String())
	}

	return models.SettlementResult{
		Rail:         models.RailCard,
		AmountAtomic: payment.Get("amount_minor").String(),
		Destination:  payment.Get("merchant_account").String(),
		Payer:        payment.Get("payment_method.fingerprint").String(),
		TxHash:       payment.Get("id").String(),
	}, nil
}

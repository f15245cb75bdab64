package infra

import (
	"time"

	"github.com/imroc/req/v3"
)

// ProvideHttpClient returns the client used for every call to the
// platform REST API. Requests carry the bot token and are retried on
// network errors and 5xx/429 responses.
func ProvideHttpClient(env *Env, loggerFactory *LoggerFactory) *req.Client {
	logger := loggerFactory.Create("HttpClient").Sugar()

	return req.C(). // Use C() to create a client and set with chainable client settings.
		SetBaseURL(env.PlatformApiUrl).
		SetCommonHeader("Authorization", "Bot "+env.PlatformToken).
		SetCommonContentType("application/json").
		// Timeout of all requests.
		SetTimeout(10 * time.Second).
		// Enable retry and set the maximum retry count.
		SetCommonRetryCount(3).
		SetCommonRetryFixedInterval(3 * time.Second).
		SetCommonRetryCondition(func(resp *req.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp.StatusCode == 429 || resp.StatusCode >= 500
		}).
		SetCommonRetryHook(func(resp *req.Response, err error) {
			if err != nil {
				logger.Warnf("retrying request err[%v]", err)
				return
			}
			logger.Warnf("retrying request %v %v status[%v]", resp.Request.Method, resp.Request.RawURL, resp.Status)
		})
}

package middleware

import "net/http"

// hstsMaxAge はHTTPS配信時のStrict-Transport-Securityの有効期間（1年）。
const hstsMaxAge = "max-age=31536000"

// NewSecurityHeadersMiddleware は全画面に共通のレスポンスヘッダーを付与するミドルウェアを返す。
// 画面はフレームへの埋め込みを許可するため、X-Frame-Optionsとframe-ancestorsは付与しない。
// Cookie.SecureがtrueのときだけHSTSを付与する。
func NewSecurityHeadersMiddleware(cookie CookieConfig) func(next http.Handler) http.Handler {
	headers := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"Referrer-Policy":        "same-origin",
		// ログイン中の画面をブラウザや中継プロキシに残さない
		"Cache-Control": "no-store",
	}
	if cookie.Secure {
		headers["Strict-Transport-Security"] = hstsMaxAge
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for k, v := range headers {
				w.Header().Set(k, v)
			}
			next.ServeHTTP(w, r)
		})
	}
}

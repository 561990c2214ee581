package web

import "net/http"

func writeHTML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(body))
}

// Landing serves the marketing landing page.
func (h *Handler) Landing(w http.ResponseWriter, r *http.Request) {
	writeHTML(w, `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	<title>NutriFact - Nutrition Data API</title>
</head>
<body style="background:#0f172a;color:#f1f5f9;font-family:system-ui;margin:0;">
	<div style="max-width:960px;margin:0 auto;padding:4rem 2rem;">
		<h1 style="font-size:2.5rem;">🥦 NutriFact</h1>
		<p style="color:#94a3b8;font-size:1.2rem;">Nutrition data for a million foods, one API call away.</p>
		<p style="margin-top:2rem;">
			<a href="/signup" style="color:#0f172a;background:#4ade80;padding:0.75rem 1.5rem;border-radius:0.75rem;text-decoration:none;font-weight:600;">Get an API key</a>
			<a href="/login" style="color:#4ade80;margin-left:1.5rem;">Sign in</a>
		</p>
	</div>
</body></html>`)
}

// LoginPage serves the sign-in page.
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	writeHTML(w, `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	<title>Sign in - NutriFact</title>
</head>
<body style="background:#0f172a;color:#f1f5f9;font-family:system-ui;display:flex;align-items:center;justify-content:center;min-height:100vh;margin:0;">
	<div style="width:100%;max-width:24rem;padding:2rem;">
		<h1 style="text-align:center;">🥦 NutriFact</h1>
		<form method="post" action="/v1/auth/login" style="display:flex;flex-direction:column;gap:0.75rem;">
			<input name="email" type="email" placeholder="Email" required style="padding:0.75rem;border-radius:0.5rem;border:1px solid #334155;background:#1e293b;color:inherit;">
			<input name="password" type="password" placeholder="Password" required style="padding:0.75rem;border-radius:0.5rem;border:1px solid #334155;background:#1e293b;color:inherit;">
			<button type="submit" style="padding:0.75rem;border-radius:0.5rem;border:none;background:#4ade80;color:#0f172a;font-weight:600;">Sign in</button>
		</form>
		<div style="margin-top:1.5rem;display:flex;flex-direction:column;gap:0.5rem;">
			<a href="/auth/github" style="color:#f1f5f9;background:#334155;padding:0.6rem;border-radius:0.5rem;text-align:center;text-decoration:none;">Continue with GitHub</a>
			<a href="/auth/google" style="color:#f1f5f9;background:#334155;padding:0.6rem;border-radius:0.5rem;text-align:center;text-decoration:none;">Continue with Google</a>
		</div>
		<p style="text-align:center;margin-top:1.5rem;color:#94a3b8;">No account? <a href="/signup" style="color:#4ade80;">Sign up</a></p>
	</div>
</body></html>`)
}

// SignupPage serves the registration page.
func (h *Handler) SignupPage(w http.ResponseWriter, r *http.Request) {
	writeHTML(w, `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	<title>Sign up - NutriFact</title>
</head>
<body style="background:#0f172a;color:#f1f5f9;font-family:system-ui;display:flex;align-items:center;justify-content:center;min-height:100vh;margin:0;">
	<div style="width:100%;max-width:24rem;padding:2rem;">
		<h1 style="text-align:center;">Create your account</h1>
		<form method="post" action="/v1/auth/register" style="display:flex;flex-direction:column;gap:0.75rem;">
			<input name="first_name" placeholder="First name" required style="padding:0.75rem;border-radius:0.5rem;border:1px solid #334155;background:#1e293b;color:inherit;">
			<input name="last_name" placeholder="Last name" style="padding:0.75rem;border-radius:0.5rem;border:1px solid #334155;background:#1e293b;color:inherit;">
			<input name="email" type="email" placeholder="Email" required style="padding:0.75rem;border-radius:0.5rem;border:1px solid #334155;background:#1e293b;color:inherit;">
			<input name="password" type="password" placeholder="Password (8+ characters)" required minlength="8" style="padding:0.75rem;border-radius:0.5rem;border:1px solid #334155;background:#1e293b;color:inherit;">
			<button type="submit" style="padding:0.75rem;border-radius:0.5rem;border:none;background:#4ade80;color:#0f172a;font-weight:600;">Sign up</button>
		</form>
		<p style="text-align:center;margin-top:1.5rem;color:#94a3b8;">Already registered? <a href="/login" style="color:#4ade80;">Sign in</a></p>
	</div>
</body></html>`)
}

// Dashboard serves the authenticated app shell; the dashboard content is
// rendered client-side against the /v1 API. Anonymous visitors go to the
// sign-in page.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	state := h.sessions.Load(r)
	if !state.IsAuthenticated() {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	writeHTML(w, `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	<title>Dashboard - NutriFact</title>
</head>
<body style="background:#0f172a;color:#f1f5f9;font-family:system-ui;margin:0;">
	<div style="max-width:960px;margin:0 auto;padding:2rem;">
		<h1>🥦 NutriFact</h1>
		<div id="app" data-api-base="/v1">
			<p style="color:#94a3b8;">Loading your dashboard…</p>
		</div>
	</div>
</body></html>`)
}

// CheckoutSuccess is the hosted-checkout return page. The subscription
// status is read from the backend, never inferred from reaching this URL.
func (h *Handler) CheckoutSuccess(w http.ResponseWriter, r *http.Request) {
	writeHTML(w, `<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Payment complete - NutriFact</title></head>
<body style="background:#0f172a;color:#f1f5f9;font-family:system-ui;display:flex;align-items:center;justify-content:center;min-height:100vh;margin:0;">
	<div style="text-align:center;">
		<h1>✅ Thanks! Your payment went through.</h1>
		<p style="color:#94a3b8;">Your plan will be active within a few seconds.</p>
		<a href="/dashboard" style="color:#4ade80;">Go to dashboard</a>
	</div>
</body></html>`)
}

// CheckoutCancel is the hosted-checkout cancel page.
func (h *Handler) CheckoutCancel(w http.ResponseWriter, r *http.Request) {
	writeHTML(w, `<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Checkout canceled - NutriFact</title></head>
<body style="background:#0f172a;color:#f1f5f9;font-family:system-ui;display:flex;align-items:center;justify-content:center;min-height:100vh;margin:0;">
	<div style="text-align:center;">
		<h1>Checkout canceled</h1>
		<p style="color:#94a3b8;">No charge was made. You can pick a plan whenever you're ready.</p>
		<a href="/dashboard" style="color:#4ade80;">Back to plans</a>
	</div>
</body></html>`)
}

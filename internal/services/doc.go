// Package services implements clients for the venue's content backend.
//
// # Client
//
// [Client] attaches the stored bearer token to every authenticated request. When the backend answers 401,
// the client refreshes the token pair once and resends the original request exactly once:
//   - no refresh token stored: [shared.AuthError] with kind NoRefreshToken
//   - refresh rejected: tokens are cleared, OnAuthFailure is called, kind RefreshFailed
//   - resent request rejected again: kind Unauthorized, no second refresh
//
// Concurrent 401s for the same refresh token share one refresh call via [singleflight.Group].
// A request whose token was already rotated by another request is resent without refreshing again.
//
// Transport failures surface as [shared.NetworkError]; other non-2xx responses as [shared.HTTPError].
//
// # Token Storage
//
// [TokenStore] abstracts where the pair lives. [MemoryTokenStore] and [FileTokenStore] are provided here;
// the repositories package adds a SQLite store.
//
// # Resources
//
// [EventService], [ArtistService], [ChecklistTemplateService], [ChecklistInstanceService] and [SettingsService]
// map the REST endpoints onto [models] types. List endpoints other than events return [models.Paginated] envelopes.
//
// [StreamService] builds event stream URLs with the access token as a query parameter.
package services

// Package keycloak es un cliente mínimo del admin REST de Keycloak:
// token de admin por password grant, realms, clients y users.
//
// Todas las llamadas comparten un TokenProvider. Un 401 invalida el token
// cacheado y reenvía la request una sola vez; cualquier otro error se
// devuelve tal cual (sin retries).
package keycloak

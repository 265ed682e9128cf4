// Package provision implementa los pasos del seeding contra el admin API:
//
//   - EnsureRealm: crea el realm si no existe (nunca lo actualiza).
//   - EnsureClient: crea el client confidencial si no está en el realm.
//   - PurgeUsers: borra los usuarios existentes, uno por uno.
//   - SeedUsers: crea usuarios en batches con pausa aleatoria entre batches
//     y deja una fila por intento en el CSV.
//
// Runner.Run los ejecuta en ese orden. Cada paso pide el token primero; si la
// autenticación falla, ese paso se aborta y los siguientes igual se intentan.
package provision

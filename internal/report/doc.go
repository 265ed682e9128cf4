// Package report escribe el CSV de usuarios sembrados y el resumen JSON de
// la corrida.
//
// El CSV es append-only: cada fila se vuelca a disco (Flush + fsync) al
// escribirse, de modo que una corrida interrumpida deja un reporte válido
// hasta el último usuario intentado.
package report

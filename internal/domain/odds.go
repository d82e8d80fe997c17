package domain

// odds.go: conversión entre cuotas decimales y fraccionarias.
//
// Convenciones:
//   - Decimal: retorno total por unidad apostada (incluye el stake). 2.5 = 6/4.
//   - Fraccionaria: beneficio/stake al estilo bookmaker ("6/4", "11/10").
//   - La conversión decimal → fraccionaria es APROXIMADA: se elige la fracción
//     más cercana de una tabla fija de precios habituales, no la reducción exacta.

import (
	"math"
	"strconv"
	"strings"
)

// EvenMoney es la cuota decimal por defecto cuando el input no se puede interpretar.
// Un leg mal escrito no debe bloquear todo el flujo del pool.
const EvenMoney = 2.0

// fraction es una entrada de la tabla de precios habituales.
type fraction struct {
	profit float64 // beneficio por unidad (decimal - 1)
	label  string
}

// commonFractions va de 1/10 a 50/1. El orden importa: en empate gana la primera.
var commonFractions = []fraction{
	{0.1, "1/10"}, {0.2, "1/5"}, {0.25, "1/4"}, {0.33, "1/3"}, {0.4, "2/5"}, {0.5, "1/2"},
	{0.57, "4/7"}, {0.6, "3/5"}, {0.67, "2/3"}, {0.73, "8/11"}, {0.8, "4/5"}, {0.91, "10/11"},
	{1, "1/1"}, {1.1, "11/10"}, {1.2, "6/5"}, {1.33, "4/3"}, {1.4, "7/5"}, {1.5, "3/2"},
	{1.6, "8/5"}, {1.67, "5/3"}, {1.8, "9/5"}, {2, "2/1"}, {2.25, "9/4"}, {2.5, "5/2"},
	{2.75, "11/4"}, {3, "3/1"}, {3.5, "7/2"}, {4, "4/1"}, {4.5, "9/2"}, {5, "5/1"},
	{6, "6/1"}, {7, "7/1"}, {8, "8/1"}, {9, "9/1"}, {10, "10/1"}, {12, "12/1"},
	{14, "14/1"}, {16, "16/1"}, {20, "20/1"}, {25, "25/1"}, {33, "33/1"}, {50, "50/1"},
}

// ToDecimal convierte "a/b" a cuota decimal (a/b + 1).
// Si el string no es una fracción válida intenta parsearlo como número entero;
// si tampoco, devuelve EvenMoney. Nunca devuelve error.
func ToDecimal(fractional string) float64 {
	s := strings.TrimSpace(fractional)
	if num, den, ok := strings.Cut(s, "/"); ok {
		a, errA := strconv.ParseFloat(strings.TrimSpace(num), 64)
		b, errB := strconv.ParseFloat(strings.TrimSpace(den), 64)
		if errA == nil && errB == nil && b != 0 {
			if d := a/b + 1; isFinite(d) {
				return d
			}
		}
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil && isFinite(v) && v != 0 {
		return v
	}
	return EvenMoney
}

// ToFractional devuelve la fracción de la tabla más cercana a la cuota decimal dada.
// decimal <= 1 no tiene beneficio representable → "1/1".
func ToFractional(decimal float64) string {
	if decimal <= 1 || math.IsNaN(decimal) {
		return "1/1"
	}
	if math.IsInf(decimal, 1) {
		return commonFractions[len(commonFractions)-1].label
	}
	profit := decimal - 1

	closest := commonFractions[0]
	minDiff := math.Abs(profit - closest.profit)
	for _, f := range commonFractions[1:] {
		if diff := math.Abs(profit - f.profit); diff < minDiff {
			minDiff = diff
			closest = f
		}
	}
	return closest.label
}

// Combine multiplica las cuotas decimales de todos los legs (precio de la acca).
// Lista vacía → 1.0, el neutro multiplicativo.
func Combine(odds []float64) float64 {
	total := 1.0
	for _, o := range odds {
		total *= o
	}
	return total
}

// FractionGranularity devuelve la distancia máxima entre un beneficio y su fracción
// más cercana dentro del rango cubierto por la tabla. Útil para validar round-trips.
func FractionGranularity(decimal float64) float64 {
	profit := decimal - 1
	for i := 1; i < len(commonFractions); i++ {
		lo, hi := commonFractions[i-1].profit, commonFractions[i].profit
		if profit >= lo && profit <= hi {
			return (hi - lo) / 2
		}
	}
	if profit < commonFractions[0].profit {
		return commonFractions[0].profit - profit
	}
	return profit - commonFractions[len(commonFractions)-1].profit
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

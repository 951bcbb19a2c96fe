// Package command turns Chinese modelling instructions such as
// "模数1.5齿数30宽度10的齿轮" into typed shape specifications.
//
// Text is first normalized (whitespace and unit markers removed, single
// numeral characters replaced by digits), then classified into one of the
// shape kinds by keyword, then each field of that kind is extracted with its
// own pattern. Fields that do not match fall back to their defaults.
package command

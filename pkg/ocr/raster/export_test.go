package raster

var SortPages = sortPages

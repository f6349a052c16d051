// Package pandar decodes Hesai Pandar40 LiDAR packets into calibrated 3D
// points. It covers the numerical core of a sensor driver: the fixed-layout
// binary parser, the per-laser correction table, the azimuth trig lookup and
// the spherical-to-Cartesian geometry. Capturing packets from the network and
// publishing the resulting clouds are left to the surrounding driver stack.
package pandar

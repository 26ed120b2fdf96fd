/*Package interval implements interval-union operations in a manner optimized
  for sets of genomic coordinates represented by BED files.
  Overlapping and touching intervals are merged, not tracked separately.
  The somatic caller uses it to restrict calls to target regions.
  It assumes every position fits in a PosType (int32).
*/
package interval
